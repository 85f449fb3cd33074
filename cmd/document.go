package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docvault/docvault"
	"github.com/docvault/docvault/internal/config"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(createDocCmd())
	rootCmd.AddCommand(getDocCmd())
	rootCmd.AddCommand(listDocCmd())
	rootCmd.AddCommand(deleteDocCmd())
}

func newVault() (*docvault.Vault, error) {
	return docvault.New(config.LoadConfig())
}

func createDocCmd() *cobra.Command {
	var label string

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a document",
		Long:    `create a stub document, content arrives with the first upload`,
		Example: "docvault create -l <label>",
		Run: func(cmd *cobra.Command, args []string) {
			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			doc, err := vault.Documents.CreateDocument(context.Background(), label)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("document created with id: %s", doc.ID)
		},
	}

	command.Flags().StringVarP(&label, "label", "l", "", "label of the document")

	command.Flags().SortFlags = false

	return command
}

func getDocCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a document",
		Example: "docvault get -d <doc-id>",
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

			doc, err := vault.Documents.GetDocument(context.Background(), id)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Label", "Stub", "Versions"})
			table.Append([]string{doc.ID, doc.Label, strconv.FormatBool(doc.IsStub), strconv.Itoa(len(doc.Versions))})
			table.Render()
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")

	command.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	command.Flags().SortFlags = false

	return command
}

func listDocCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "list documents",
		Run: func(cmd *cobra.Command, args []string) {
			vault, err := newVault()
			if err != nil {
				logrus.Error(err)
				return
			}

			docs, err := vault.Documents.ListDocuments(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Label", "Stub"})
			for _, doc := range docs {
				table.Append([]string{doc.ID, doc.Label, strconv.FormatBool(doc.IsStub)})
			}

			table.Render()
		},
	}

	return command
}

func deleteDocCmd() *cobra.Command {
	var docID string

	var required = []string{"doc-id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete a document and its versions",
		Example: "docvault delete -d <doc-id>",
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

			if err := vault.Documents.DeleteDocument(context.Background(), id); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("document deleted: %s", docID)
		},
	}

	command.Flags().StringVarP(&docID, "doc-id", "d", "", "document id (required)")
	command.Flags().SortFlags = false

	return command
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags checks if the required flags are set and returns ok if they are set
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if cmd.Flag(required).Changed == false {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")

		cmd.Usage()

		return true
	}

	return false
}
