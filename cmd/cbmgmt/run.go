package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cbmgmt "github.com/DrewBradfordXYZ/cbmgmt-go"
	"github.com/DrewBradfordXYZ/cbmgmt-go/config"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <TAG>",
	Short: "Run one management operation",
	Long: `Run one management operation and print its result.

The operation arguments are given as a JSON object. With --async the
operation is submitted with a success/failure callback pair instead of
blocking on its result.

Example:
  cbmgmt run GET_ROLES
  cbmgmt run DROP_GROUP --args '{"name":"readers"}' --async
  cbmgmt run GET_INDEX --args '{"bucket_name":"travel","document_name":"by_type","name_space":"development"}' -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		rawArgs, _ := cmd.Flags().GetString("args")
		async, _ := cmd.Flags().GetBool("async")
		output, _ := cmd.Flags().GetString("output")

		opArgs, err := parseArgs(rawArgs)
		if err != nil {
			return err
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		c, err := cbmgmt.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := c.WaitUntilReady(ctx); err != nil {
			return err
		}

		return runAndRender(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), c, cbmgmt.Op(args[0]), opArgs, async, output)
	},
}

// errOperationFailed is returned once the failure has been printed.
var errOperationFailed = errors.New("operation failed")

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "", "Path to a YAML config file")
	runCmd.Flags().StringP("args", "a", "{}", "Operation arguments as a JSON object")
	runCmd.Flags().Bool("async", false, "Submit with callbacks instead of blocking")
	runCmd.Flags().StringP("output", "o", "json", "Output format (json or yaml)")
}

func parseArgs(raw string) (cbmgmt.Args, error) {
	args := cbmgmt.Args{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrap(err, "parse --args")
	}
	return args, nil
}

// runOperation submits op and waits for its outcome in either mode. On
// failure info classifies err the same way in both modes.
func runOperation(ctx context.Context, c *cbmgmt.Client, op cbmgmt.Op, args cbmgmt.Args, async bool) (cbmgmt.Result, cbmgmt.ErrorInfo, error) {
	if !async {
		res, err := c.Submit(ctx, cbmgmt.Request{Op: op, Args: args})
		if err != nil {
			return nil, blockingInfo(err), err
		}
		return res, cbmgmt.ErrorInfo{}, nil
	}

	type outcome struct {
		res  cbmgmt.Result
		info cbmgmt.ErrorInfo
		err  error
	}
	done := make(chan outcome, 1)
	_, err := c.Submit(ctx, cbmgmt.Request{
		Op:        op,
		Args:      args,
		OnSuccess: func(_ context.Context, res cbmgmt.Result) { done <- outcome{res: res} },
		OnFailure: func(_ context.Context, err error, info cbmgmt.ErrorInfo) { done <- outcome{info: info, err: err} },
	})
	if err != nil {
		return nil, blockingInfo(err), err
	}

	select {
	case o := <-done:
		return o.res, o.info, o.err
	case <-ctx.Done():
		return nil, cbmgmt.ErrorInfo{Kind: cbmgmt.KindOf(ctx.Err())}, ctx.Err()
	}
}

// blockingInfo builds the context bundle async callbacks receive from a
// blocking-mode error.
func blockingInfo(err error) cbmgmt.ErrorInfo {
	info := cbmgmt.ErrorInfo{Kind: cbmgmt.KindOf(err)}
	var httpErr *cbmgmt.HTTPError
	if errors.As(err, &httpErr) {
		info.Message = httpErr.Message
		info.ErrorMessages = httpErr.ErrorMessages
	}
	return info
}

// runAndRender prints the result to stdout, or the failure to stderr and
// returns errOperationFailed.
func runAndRender(ctx context.Context, stdout, stderr io.Writer, c *cbmgmt.Client, op cbmgmt.Op, args cbmgmt.Args, async bool, format string) error {
	res, info, err := runOperation(ctx, c, op, args, async)
	if err != nil {
		printError(stderr, err, info)
		return errOperationFailed
	}
	return render(stdout, res, format)
}

func render(w io.Writer, res cbmgmt.Result, format string) error {
	if res == nil {
		res = cbmgmt.Result{}
	}
	switch format {
	case "json":
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode result")
		}
		fmt.Fprintln(w, string(out))
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return errors.Wrap(enc.Encode(res), "encode result")
	default:
		return errors.Newf("unknown output format %q", format)
	}
}

func printError(w io.Writer, err error, info cbmgmt.ErrorInfo) {
	fmt.Fprintf(w, "%s: %v\n", info.Kind, err)
	for _, msg := range info.ErrorMessages {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}
