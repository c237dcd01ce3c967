package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewGroupCmd создаёт группу команд для управления каталогом групп VK.
func NewGroupCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage VK groups",
	}

	cmd.AddCommand(
		newGroupListCmd(clientFn, outputFn),
		newGroupAddCmd(clientFn, outputFn),
		newGroupShowCmd(clientFn, outputFn),
		newGroupDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newGroupListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			groups, err := client.ListGroups()
			if err != nil {
				return err
			}

			headers := []string{"VK_ID", "NAME", "SCREEN_NAME", "WALL", "CREATED"}
			rows := make([][]string, len(groups))
			for i, g := range groups {
				wall := "enabled"
				if !g.WallEnabled {
					wall = "disabled"
				}
				rows[i] = []string{strconv.FormatInt(g.VkID, 10), g.Name, g.ScreenName, wall, g.CreatedAt}
			}

			out.Print(headers, rows, groups)
			return nil
		},
	}
}

func newGroupAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var screenName string

	cmd := &cobra.Command{
		Use:   "add VK_ID NAME",
		Short: "Register a VK group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vkID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid VK group id %q", args[0])
			}

			group, err := client.RegisterGroup(RegisterGroupRequest{
				VkID:       vkID,
				Name:       args[1],
				ScreenName: screenName,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Group registered: %d", group.VkID))
			return nil
		},
	}

	cmd.Flags().StringVar(&screenName, "screen-name", "", "VK screen name")

	return cmd
}

func newGroupShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show VK_ID",
		Short: "Show group details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vkID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid VK group id %q", args[0])
			}

			group, err := client.GetGroup(vkID)
			if err != nil {
				return err
			}

			wall := "enabled"
			if !group.WallEnabled {
				wall = "disabled"
			}

			out.Print(
				[]string{"VK_ID", "NAME", "SCREEN_NAME", "WALL", "CREATED"},
				[][]string{{strconv.FormatInt(group.VkID, 10), group.Name, group.ScreenName, wall, group.CreatedAt}},
				group,
			)
			return nil
		},
	}
}

func newGroupDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete VK_ID",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vkID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid VK group id %q", args[0])
			}

			if err := client.DeleteGroup(vkID); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Group deleted: %d", vkID))
			return nil
		},
	}
}
