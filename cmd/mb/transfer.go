package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/importer"
	"github.com/markbook/markbook/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file.json|-> | --from-folder <dir>",
	GroupID: "data",
	Short:   "Import courses from a JSON export",
	Long: `Import one course object or an array of courses.

A course matching an existing one by id or by name (ignoring case) is a
duplicate. By default duplicates are skipped. With --merge they are merged
into the existing course: new students and tests are added and feedback is
reconciled per student. With --keep-duplicates they are imported as a new
course named "<name> (imported)".

With --from-folder the courses are read from a folder mirror instead: either
one course folder (holding course-info.json), a mirror root, or a folder of
course folders. Exported *.json files beside the course folders are imported
too.

The collection is backed up with the label before-import first.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mergeExisting, _ := cmd.Flags().GetBool("merge")
		keepDuplicates, _ := cmd.Flags().GetBool("keep-duplicates")
		fromFolder, _ := cmd.Flags().GetString("from-folder")

		if (fromFolder == "") == (len(args) == 0) {
			exitf("give either a JSON file or --from-folder <dir>")
		}

		var data []byte
		if fromFolder == "" {
			var err error
			if data, err = readInput(args[0]); err != nil {
				exitf("%v", err)
			}
		}

		a := openApp()
		defer a.close()

		opts := &importer.Options{SkipDuplicates: !keepDuplicates, MergeExisting: mergeExisting}
		var (
			res *importer.Result
			err error
		)
		if fromFolder != "" {
			res, err = a.importer.ImportFromFolder(cmd.Context(), fromFolder, opts)
		} else {
			res, err = a.importer.ImportCourses(cmd.Context(), string(data), opts)
		}
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(res)
		} else {
			fmt.Printf("%s Import finished\n", ui.RenderAccent("📥"))
			fmt.Printf("   Imported: %d\n", res.Imported)
			fmt.Printf("   Merged: %d\n", res.Merged)
			fmt.Printf("   Skipped duplicates: %d\n", res.SkippedDuplicates)
			for _, msg := range res.Errors {
				fmt.Printf("   %s %s\n", ui.RenderFail("✗"), msg)
			}
		}
		if len(res.Errors) > 0 && res.Imported+res.Merged == 0 {
			os.Exit(1)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:     "export [file.json]",
	GroupID: "data",
	Short:   "Export all courses as JSON",
	Long:    `Write the full collection as indented JSON to a file, or stdout when no file is given.`,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		out, err := a.importer.ExportAllCourses(cmd.Context())
		if err != nil {
			exitf("%v", err)
		}

		if len(args) == 0 || args[0] == "-" {
			fmt.Println(out)
			return
		}
		if err := os.WriteFile(args[0], []byte(out+"\n"), 0o644); err != nil {
			exitf("failed to write export: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s Exported to %s\n", ui.RenderPass("✓"), args[0])
	},
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func init() {
	importCmd.Flags().Bool("merge", false, "merge duplicates into the existing course")
	importCmd.Flags().String("from-folder", "", "import from a folder mirror or course folder instead of a JSON file")
	importCmd.Flags().Bool("keep-duplicates", false, "import duplicates as renamed copies instead of skipping them")
	rootCmd.AddCommand(importCmd, exportCmd)
}
