package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finmentor/internal/auth"
	cl "finmentor/internal/cli"
	"finmentor/internal/config"
	"finmentor/internal/market"
)

func main() {
	config.LoadDotEnv()
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "fm",
		Short:        "FinMentor: learn investing with market data, games and an AI mentor",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newRegisterCmd(&apiBase),
		newLoginCmd(&apiBase),
		newLogoutCmd(&apiBase),
		newMeCmd(&apiBase),
		newQuoteCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newDividendsCmd(&apiBase),
		newPredictCmd(&apiBase),
		newPlayCmd(&apiBase),
		newProgressCmd(&apiBase),
		newTutorialCmd(&apiBase),
		newMentorCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

// sessionExpired turns a 401 into a hint and drops the stale local token.
func sessionExpired(err error) error {
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		_ = cl.ClearSession()
		return fmt.Errorf("session expired, run `fm login` again: %w", err)
	}
	return err
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create a FinMentor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in auth.RegisterInput
			var err error
			if in.Username, err = promptRequired("Username"); err != nil {
				return err
			}
			if in.Email, err = promptRequired("Email"); err != nil {
				return err
			}
			if in.Password, err = promptPassword("Password"); err != nil {
				return err
			}
			if in.Confirm, err = promptPassword("Confirm password"); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			if _, err := client.Register(ctx, in); err != nil {
				return err
			}
			out, err := client.Login(ctx, in.Username, in.Password)
			if err != nil {
				printWarn("Account created. Run `fm login` to sign in.")
				return err
			}
			if err := saveLogin(out); err != nil {
				return err
			}
			printSuccess("Registration successful! Run `fm tutorial` for a quick tour.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Login to FinMentor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := ""
			if len(args) == 1 {
				username = strings.TrimSpace(args[0])
			}
			var err error
			if username == "" {
				if username, err = promptRequired("Username"); err != nil {
					return err
				}
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Login(ctx, username, password)
			if err != nil {
				return err
			}
			if err := saveLogin(out); err != nil {
				return err
			}
			printSuccess("Welcome back, " + out.User.Username + "!")
			return nil
		},
	}
}

func saveLogin(out cl.LoginResponse) error {
	return cl.SaveSession(cl.Session{
		Token:    out.Token,
		Username: out.User.Username,
		UserID:   out.User.ID,
	})
}

func newLogoutCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the local token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sess, err := cl.LoadSession(); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				if err := newClient(apiBase).Logout(ctx, sess.Token); err != nil {
					printWarn("Server logout failed: " + err.Error())
				}
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			me, err := newClient(apiBase).Me(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			renderMe(me)
			return nil
		},
	}
}

func newQuoteCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Show the latest quote for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Quote(ctx, args[0])
			if err != nil {
				return err
			}
			if !out.Found {
				printWarn("No market data for " + strings.ToUpper(args[0]) + ".")
				return nil
			}
			renderQuote(out.Quote)
			return nil
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var (
		period  string
		csvPath string
	)
	cmd := &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Show or export daily price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := market.ValidatePeriod(period); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)

			if csvPath != "" {
				var w io.Writer = os.Stdout
				if csvPath != "-" {
					f, err := os.Create(csvPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := client.HistoryCSV(ctx, args[0], period, w); err != nil {
					return err
				}
				if csvPath != "-" {
					printSuccess("Saved " + csvPath)
				}
				return nil
			}

			out, err := client.History(ctx, args[0], period)
			if err != nil {
				return err
			}
			if !out.Found {
				printWarn("No price history for " + out.Symbol + ".")
				return nil
			}
			renderHistory(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", market.DefaultPeriod, "range: "+strings.Join(market.Periods, ", "))
	cmd.Flags().StringVar(&csvPath, "csv", "", "write CSV to this file (- for stdout)")
	return cmd
}

func newDividendsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dividends SYMBOL",
		Short: "Show dividend history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Dividends(ctx, args[0])
			if err != nil {
				return err
			}
			if !out.Found {
				printInfo("No dividend history available for " + out.Symbol + ".")
				return nil
			}
			renderDividends(out)
			return nil
		},
	}
}

func newPredictCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "predict SYMBOL up|down",
		Short: "Guess the direction of the last trading day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Predict(ctx, sess.Token, args[0], args[1])
			if err != nil {
				return sessionExpired(err)
			}
			renderResult(out)
			return nil
		},
	}
}

func newPlayCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play [SYMBOL]",
		Short: "Play the price prediction game interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			symbol := "AAPL"
			if len(args) == 1 {
				symbol = args[0]
			}
			return runPlay(cmd.Context(), newClient(apiBase), sess, symbol)
		},
	}
}

func newProgressCmd(apiBase *string) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Show points, accuracy and achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Progress(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			renderProgress(out)
			return nil
		},
	}
	progressCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Re-evaluate achievements now",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			badges, err := newClient(apiBase).Evaluate(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			if len(badges) == 0 {
				printInfo("No new achievements.")
				return nil
			}
			renderBadges(badges)
			return nil
		},
	})
	return progressCmd
}

func newTutorialCmd(apiBase *string) *cobra.Command {
	tutorial := &cobra.Command{
		Use:   "tutorial",
		Short: "Show the current tutorial step",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).Tutorial(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			return renderTutorial(st)
		},
	}
	tutorial.AddCommand(&cobra.Command{
		Use:   "next",
		Short: "Advance to the next tutorial step",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).AdvanceTutorial(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			if st.Completed {
				printSuccess("🎓 Tutorial Complete! You're ready to start your financial learning journey!")
				return nil
			}
			return renderTutorial(st)
		},
	})
	return tutorial
}

func newMentorCmd(apiBase *string) *cobra.Command {
	mentorCmd := &cobra.Command{
		Use:   "mentor",
		Short: "Talk to the AI financial mentor",
	}

	mentorCmd.AddCommand(&cobra.Command{
		Use:   "chat [message]",
		Short: "Ask a question, or start an interactive chat without arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			if len(args) > 0 {
				return askMentor(cmd.Context(), client, sess, strings.Join(args, " "))
			}
			printInfo("Ask anything about investing. An empty line ends the chat.")
			for {
				msg, err := promptOptional("you")
				if err != nil || msg == "" {
					return nil
				}
				if err := askMentor(cmd.Context(), client, sess, msg); err != nil {
					printError(err.Error())
				}
			}
		},
	})

	mentorCmd.AddCommand(&cobra.Command{
		Use:   "topics",
		Short: "List suggested learning topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			topics, err := newClient(apiBase).Topics(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			accent.Println("\n== LEARNING TOPICS ==")
			for i, t := range topics {
				fmt.Printf("%d. %s\n", i+1, t.Label)
			}
			if len(topics) > 0 {
				printInfo("\nAsk about one with: fm mentor chat \"" + topics[0].Prompt + "\"")
			}
			return nil
		},
	})

	mentorCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := newClient(apiBase).ResetChat(ctx, sess.Token); err != nil {
				return sessionExpired(err)
			}
			printSuccess("Chat cleared.")
			return nil
		},
	})

	mentorCmd.AddCommand(&cobra.Command{
		Use:   "health SYMBOL",
		Short: "Get an AI financial health score for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
			defer cancel()
			h, err := newClient(apiBase).HealthScore(ctx, sess.Token, args[0])
			if err != nil {
				return sessionExpired(err)
			}
			return renderHealth(h)
		},
	})
	return mentorCmd
}

func askMentor(ctx context.Context, client *cl.Client, sess cl.Session, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()
	out, err := client.Chat(ctx, sess.Token, msg)
	if out.Reply != "" {
		if rerr := renderMarkdown(out.Reply); rerr != nil {
			fmt.Println(out.Reply)
		}
	}
	if err != nil {
		return sessionExpired(err)
	}
	return nil
}

func newWatchCmd(apiBase *string) *cobra.Command {
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Manage your watchlist",
	}
	watch.AddCommand(&cobra.Command{
		Use:   "add SYMBOL",
		Short: "Watch a symbol and get a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
			defer cancel()
			item, err := newClient(apiBase).Watch(ctx, sess.Token, args[0])
			if err != nil {
				return sessionExpired(err)
			}
			printSuccess("Added " + item.Symbol + " to your watchlist.")
			renderWatchItems(watchItems(item))
			return nil
		},
	})
	watch.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "Show watched symbols",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			items, err := newClient(apiBase).Watchlist(ctx, sess.Token)
			if err != nil {
				return sessionExpired(err)
			}
			if len(items) == 0 {
				printInfo("Your watchlist is empty. Add one with: fm watch add SYMBOL")
				return nil
			}
			renderWatchItems(items)
			return nil
		},
	})
	watch.AddCommand(&cobra.Command{
		Use:     "remove SYMBOL",
		Short:   "Stop watching a symbol",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			removed, err := newClient(apiBase).Unwatch(ctx, sess.Token, args[0])
			if err != nil {
				return sessionExpired(err)
			}
			if !removed {
				printWarn(strings.ToUpper(args[0]) + " was not on your watchlist.")
				return nil
			}
			printSuccess("Removed " + strings.ToUpper(args[0]) + ".")
			return nil
		},
	})
	return watch
}
