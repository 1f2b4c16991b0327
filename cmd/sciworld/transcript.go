package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/boristopalov/sciworld/pkg/transcript"
)

func transcriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect stored episode transcripts",
	}
	cmd.AddCommand(transcriptListCmd(), transcriptShowCmd(), transcriptExportCmd(), transcriptImportCmd())
	return cmd
}

func openStore() (*transcript.SQLiteStore, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, goerr.New("store.path is not configured")
	}
	return transcript.OpenSQLite(cfg.Store.Path)
}

func transcriptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTASK\tVARIATION\tSTYLE\tSTEPS\tCOMPLETE\tSCORE")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%t\t%g\n", r.ID, r.Task, r.Variation, r.Style, r.Steps, r.Complete, r.Score)
			}
			return tw.Flush()
		},
	}
}

func transcriptShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return goerr.New("episode not found", goerr.Value("id", args[0]))
			}
			out, err := transcript.MarshalMessages(format, rec.Messages)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", transcript.FormatText, "output format: text, openai or gemini")
	return cmd
}

func transcriptExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl.zst>",
		Short: "Write every stored transcript to a zstd compressed JSON lines archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := transcript.Export(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d episodes to %s\n", n, args[0])
			return nil
		},
	}
}

func transcriptImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl.zst>",
		Short: "Save every transcript of an exported archive into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := transcript.ReadArchive(args[0])
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := transcript.Import(cmd.Context(), store, recs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d episodes from %s\n", n, args[0])
			return nil
		},
	}
}
