package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(listVersionsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(revertCmd())
}

func uploadCmd() *cobra.Command {
	var docID string
	var file string
	var comment string

	var required = []string{"doc-id", "file"}

	command := &cobra.Command{
		Use:     "upload",
		Short:   "upload a new version of a document",
		Example: "docvault upload -d <doc-id> -f <file> -m <comment>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			id, err := uuid.Parse(docID)
			if err != nil {
				logrus.Error("invalid document id, expected a valid uuid")
				return
			}

			f, err := os.Open(file)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer f.Close()

			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			version, err := vault.Versions.CreateVersion(context.Background(), id, filepath.Base(file), f, comment, actorContext())
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("version created with id: %s", version.ID)
			printField("Checksum", version.Checksum)
			printField("Mimetype", version.Mimetype)
			printField("Pages", strconv.Itoa(version.PageCount()))
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().StringVarP(&file, "file", "f", "", "file to upload (required)")
	command.Flags().StringVarP(&comment, "comment", "m", "", "comment for the version")
	bindContextFlags(command)

	command.Flags().SortFlags = false

	return command
}

func listVersionsCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     "versions",
		Short:   "list the versions of a document",
		Example: "docvault versions -d <doc-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			id, err := uuid.Parse(docID)
			if err != nil {
				logrus.Error("invalid document id, expected a valid uuid")
				return
			}

			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			versions, err := vault.Documents.ListVersions(context.Background(), id)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Timestamp", "Mimetype", "Checksum", "Pages", "Comment"})
			for _, version := range versions {
				table.Append([]string{
					version.ID,
					version.Timestamp.Format("2006-01-02 15:04:05"),
					version.Mimetype,
					version.Checksum,
					strconv.Itoa(version.PageCount()),
					version.Comment,
				})
			}

			table.Render()
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().SortFlags = false

	return command
}

func exportCmd() *cobra.Command {
	var versionID string
	var out string

	var required = []string{"version-id", "out"}

	command := &cobra.Command{
		Use:     "export",
		Short:   "export the stored content of a version to a file",
		Example: "docvault export -v <version-id> -o <file>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			id, err := uuid.Parse(versionID)
			if err != nil {
				logrus.Error("invalid version id, expected a valid uuid")
				return
			}

			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			version, err := vault.Store.GetVersion(context.Background(), id)
			if err != nil {
				logrus.Error(err)
				return
			}

			if err := vault.Versions.SaveCopy(context.Background(), version, out); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("version %s exported to %s", versionID, out)
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().StringVarP(&out, "out", "o", "", "output file (required)")
	command.Flags().SortFlags = false

	return command
}

func revertCmd() *cobra.Command {
	var versionID string

	var required = []string{"version-id"}

	command := &cobra.Command{
		Use:     "revert",
		Short:   "revert a document to an older version",
		Long:    `revert deletes every version newer than the given one`,
		Example: "docvault revert -v <version-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			id, err := uuid.Parse(versionID)
			if err != nil {
				logrus.Error("invalid version id, expected a valid uuid")
				return
			}

			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			if err := vault.Versions.Revert(context.Background(), id, actorContext()); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("document reverted to version: %s", versionID)
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	bindContextFlags(command)
	command.Flags().SortFlags = false

	return command
}
