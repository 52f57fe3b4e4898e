package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/configs"
	mq "github.com/yeisme/sharevault/pkg/internal/storage/mq"
	"github.com/yeisme/sharevault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types and the topics sharevault publishes",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			current := configs.GetConfig().MQ.GetMQType()

			fmt.Fprintln(out, "Registered mq types:")
			for _, t := range mq.GetRegisteredMQTypes() {
				mark := ""
				if t == current {
					mark = " (configured)"
				}

				fmt.Fprintln(out, "   - "+string(t)+mark)
			}

			fmt.Fprintln(out, "Topics:")
			for _, topic := range queue.Topics() {
				fmt.Fprintln(out, "   - "+topic)
			}
		},
	}
)

func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd)
}
