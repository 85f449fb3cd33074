package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "docvault"
)

var Actor string

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

type Context struct {
	Actor string `json:"actor"`
}

// saves the context info to the config file in ./.tmp
func setContextCommand() *cobra.Command {
	var actor string
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if actor == "" {
				color.Red(`missing: --actor`)
				return
			}

			writeContext(Context{Actor: actor})
		},
	}

	command.Flags().StringVarP(&actor, "actor", "a", "", "actor recorded on emitted events")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			printField("Actor", ctx.Actor)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			writeContext(Context{})
		},
	}

	return command
}

func writeContext(context Context) {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")
	viper.Set("context", context)

	if err := viper.WriteConfig(); err != nil {
		fmt.Println("error writing config file: ", err)
	} else {
		fmt.Println("context saved")
	}
}

func bindContextFlags(command *cobra.Command) {
	command.Flags().StringVarP(&Actor, "actor", "a", "", "actor recorded on emitted events")
}

// actorContext returns the actor from the --actor flag, falling back to the
// saved context file.
func actorContext() string {
	if Actor != "" {
		return Actor
	}

	return readContext().Actor
}

func readContext() Context {
	var ctx Context

	// create file if it doesn't exist
	if _, err := os.Stat("./.tmp/" + configFileName + ".yml"); os.IsNotExist(err) {
		file, err := os.Create("./.tmp/" + configFileName + ".yml")
		if err != nil {
			fmt.Println("error creating config file: ", err)
		}
		err = file.Close()
		if err != nil {
			panic(err)
		}
	}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("error reading config file: ", err)
	}

	if err := viper.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}

	return ctx
}
