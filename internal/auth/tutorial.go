package auth

import (
	"context"
	"errors"

	"finmentor/internal/apperr"
	"finmentor/internal/progress"
)

type TutorialStep struct {
	Index  int      `json:"index"`
	Title  string   `json:"title"`
	Intro  string   `json:"intro"`
	Points []string `json:"points"`
	Next   string   `json:"next"`
}

var tutorialSteps = []TutorialStep{
	{
		Title:  "Welcome to Your Financial Learning Journey!",
		Intro:  "Let's take a quick tour of the platform to help you get started.",
		Points: []string{"Analyze stocks in real time", "Play interactive learning games", "Get AI-powered market insights", "Track your learning progress"},
		Next:   "Begin Tour",
	},
	{
		Title:  "Stock Analysis Dashboard",
		Intro:  "Your main workspace for analyzing stocks.",
		Points: []string{"Enter any stock symbol (e.g. AAPL, GOOGL)", "View price history and dividends", "Check key quote figures", "Get an AI health score"},
		Next:   "Games & Learning",
	},
	{
		Title:  "Financial Learning Games",
		Intro:  "Test your market knowledge.",
		Points: []string{"Predict price movements", "Earn points and achievements", "Build your prediction streak"},
		Next:   "Market Mentor",
	},
	{
		Title:  "Your AI Market Mentor",
		Intro:  "Get personalized help.",
		Points: []string{"Understand market concepts", "Analyze stocks and trends", "Learn investment strategies"},
		Next:   "Progress Tracking",
	},
	{
		Title:  "Track Your Progress",
		Intro:  "Your progress is saved automatically.",
		Points: []string{"View earned achievements", "Check prediction accuracy", "Track learning streaks"},
		Next:   "Complete Tutorial",
	},
}

// TutorialDone is the step value stored once the last step is passed.
var TutorialDone = len(tutorialSteps)

type TutorialState struct {
	Step      int           `json:"step"`
	Completed bool          `json:"completed"`
	Percent   int           `json:"percent"`
	Current   *TutorialStep `json:"current,omitempty"`
}

func tutorialState(u User) TutorialState {
	st := TutorialState{Step: u.TutorialStep, Completed: u.TutorialCompleted}
	st.Percent = min(100, u.TutorialStep*100/(TutorialDone-1))
	if !st.Completed && u.TutorialStep >= 0 && u.TutorialStep < TutorialDone {
		step := tutorialSteps[u.TutorialStep]
		step.Index = u.TutorialStep
		st.Current = &step
	}
	return st
}

func (s *Service) Tutorial(ctx context.Context, userID int64) (TutorialState, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return TutorialState{}, err
	}
	return tutorialState(u), nil
}

// AdvanceTutorial moves one step forward. Advancing a completed tutorial is
// a no-op. When concurrent calls race on the same step only one of them
// advances; the others return the state it left behind.
func (s *Service) AdvanceTutorial(ctx context.Context, userID int64) (TutorialState, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return TutorialState{}, err
	}
	if u.TutorialCompleted {
		return tutorialState(u), nil
	}

	next := min(u.TutorialStep+1, TutorialDone)
	done := next == TutorialDone
	changed, err := s.users.AdvanceTutorial(ctx, userID, u.TutorialStep, next, done)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TutorialState{}, err
		}
		return TutorialState{}, apperr.Storage("update tutorial", err)
	}
	if !changed {
		return s.Tutorial(ctx, userID)
	}
	u.TutorialStep, u.TutorialCompleted = next, done

	if done {
		s.notify.Notify(ctx, progress.Celebration{
			Kind:        progress.CelebrateTutorial,
			UserID:      userID,
			Title:       "🎓 Tutorial Complete",
			Description: "You're ready to start your financial learning journey!",
		})
	}
	return tutorialState(u), nil
}
