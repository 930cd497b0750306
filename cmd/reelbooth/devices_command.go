package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelbooth/internal/devices"
)

func newDevicesCommand() *cobra.Command {
	var sysfsRoot string
	cmd := &cobra.Command{
		Use:         "devices",
		Short:       "List V4L2 camera nodes",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cameras, err := devices.List(sysfsRoot)
			if err != nil {
				return fmt.Errorf("list cameras: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(cameras) == 0 {
				fmt.Fprintln(out, "No cameras found")
				return nil
			}
			rows := make([][]string, 0, len(cameras))
			for _, cam := range cameras {
				rows = append(rows, []string{cam.Device, cam.Name, fmt.Sprintf("%d", cam.Index), yesNo(cam.Capture)})
			}
			fmt.Fprint(out, renderTable([]column{
				{Header: "Device"},
				{Header: "Name"},
				{Header: "Index", Align: alignRight},
				{Header: "Capture"},
			}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&sysfsRoot, "sysfs", devices.DefaultSysfsRoot, "V4L2 sysfs class directory")
	_ = cmd.Flags().MarkHidden("sysfs")
	return cmd
}
