package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/liftbuddy/config"
	"github.com/mohammad-safakhou/liftbuddy/internal/rag"
	srv "github.com/mohammad-safakhou/liftbuddy/internal/server"
)

func askCMD(load func() (*config.Config, error)) *cobra.Command {
	var userID string
	ask := &cobra.Command{
		Use:   "ask --user <uuid> <question>",
		Short: "Answer one question about a user's workouts and print how it was answered",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("--user must be a uuid: %w", err)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			deps, err := srv.NewDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer deps.Close()

			res, err := deps.Pipeline.HandleQuery(cmd.Context(), userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	ask.Flags().StringVar(&userID, "user", "", "user id to answer for")
	_ = ask.MarkFlagRequired("user")
	return ask
}

func printResult(w io.Writer, res rag.Result) {
	fmt.Fprintf(w, "branch:  %s\n", res.Branch)
	if res.Range != nil {
		fmt.Fprintf(w, "range:   %s\n", res.Range)
	}
	fmt.Fprintf(w, "records: %d\n", len(res.Records))
	for _, rec := range res.Records {
		line := rag.Sentence(rec)
		if rec.Similarity != nil {
			line = fmt.Sprintf("%s (similarity %.3f)", line, *rec.Similarity)
		}
		fmt.Fprintf(w, "  - %s\n", line)
	}
	fmt.Fprintf(w, "\n%s\n", res.Answer)
}
