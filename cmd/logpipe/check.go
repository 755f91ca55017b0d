package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wayneeseguin/logpipe/pkg/logpipe"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the resolved configuration",
		Long: `Resolves flags, the config file, LOGPIPE_* environment variables and the
defaults, then prints the result as YAML. With --build the pipeline is also
assembled once and every sink that fails to build is reported.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
	addConfigFlags(cmd)
	cmd.Flags().Bool("build", false, "Build the pipeline and report sinks that fail")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, spec, err := resolveSpec(cmd, io.Discard)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "render settings")
	}
	w := cmd.OutOrStdout()
	fmt.Fprint(w, string(out))

	if build, _ := cmd.Flags().GetBool("build"); !build {
		return nil
	}

	spec.ErrorHandler = logpipe.SilentErrorHandler
	logger, _ := logpipe.Build(spec)
	defer logger.Close()

	fmt.Fprintln(w, "---")
	for _, name := range logger.Sinks() {
		fmt.Fprintf(w, "ok     %s\n", name)
	}
	buildErrs := logger.BuildErrors()
	for _, err := range buildErrs {
		fmt.Fprintf(w, "failed %v\n", err)
	}
	if len(buildErrs) > 0 {
		return errors.Errorf("%d sink(s) failed to build", len(buildErrs))
	}
	return nil
}
