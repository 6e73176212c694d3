package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/andreyvit/scribe/archive"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.open()
			if err != nil {
				return err
			}
			infos, err := store.List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archives.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderInfos(infos))
			return nil
		},
	}
}

func renderInfos(infos []*archive.Info) string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.Format.String(),
			strconv.Itoa(info.Objects),
			strconv.Itoa(info.Size),
			fmt.Sprintf("%016x", info.Checksum),
			info.SavedAt.Local().Format(time.DateTime),
			info.ID.String(),
		})
	}
	return renderTable(
		[]string{"Name", "Format", "Objects", "Bytes", "Checksum", "Saved", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	)
}

func newDumpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dump NAME",
		Short: "Print the objects of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.open()
			if err != nil {
				return err
			}
			tr, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tr.Dump())
			return nil
		},
	}
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [NAME...]",
		Short: "Check archives for corruption (all archives if no names given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.open()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				infos, err := store.List()
				if err != nil {
					return err
				}
				for _, info := range infos {
					names = append(names, info.Name)
				}
			}
			var failed int
			for _, name := range names {
				if err := store.Verify(name); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", name, err)
					failed++
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", name)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed verification", failed, len(names))
			}
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var outFlag string
	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Write an archive record to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := archive.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			store, err := ctx.open()
			if err != nil {
				return err
			}
			tr, err := store.Get(args[0])
			if err != nil {
				return err
			}
			data, err := archive.Encode(tr, format)
			if err != nil {
				return err
			}
			if outFlag == "" || outFlag == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(outFlag, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "msgpack", "Payload format: msgpack or json")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var nameFlag string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Store an exported archive record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			tr, _, err := archive.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			name := nameFlag
			if name == "" {
				name = args[0]
			}
			store, err := ctx.open()
			if err != nil {
				return err
			}
			info, err := store.Put(name, tr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderInfos([]*archive.Info{info}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Archive name (default is the file name)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME...",
		Short: "Remove archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.open()
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := store.Delete(name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
