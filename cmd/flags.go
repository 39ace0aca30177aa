package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// flagValue reads a flag registered in an init func. A lookup failure means
// the name or type in code does not match the registration, so it panics.
func flagValue[T any](cmd *cobra.Command, name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("%s: flag --%s: %v", cmd.Name(), name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return flagValue(cmd, name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return flagValue(cmd, name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return flagValue(cmd, name, cmd.Flags().GetString)
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return flagValue(cmd, name, cmd.Flags().GetFloat64)
}
