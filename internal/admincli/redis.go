package admincli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRedisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redis",
		Short: "Maintain the Redis ranking index",
	}

	cmd.AddCommand(newRedisClearCmd())

	return cmd
}

func newRedisClearCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all index keys under a prefix",
		Long: `Delete all Redis keys under the given prefix. Cleared leaderboards are
rebuilt lazily from the record store on the next read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var deleted int64
			var cursor uint64
			for {
				keys, next, err := app.Redis.Scan(ctx, cursor, prefix+"*", 100).Result()
				if err != nil {
					return err
				}
				if len(keys) > 0 {
					n, err := app.Redis.Del(ctx, keys...).Result()
					if err != nil {
						return err
					}
					deleted += n
				}
				cursor = next
				if cursor == 0 {
					break
				}
			}

			fmt.Printf("deleted %d keys under %q\n", deleted, prefix)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "v3:lb:", "Key prefix to clear")

	return cmd
}
