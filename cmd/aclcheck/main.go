// aclcheck is the operator CLI for offline rule-set work: checking
// whether a flow is already authorized by a rule-set file, and
// generating the terms a file is missing for a requested flow.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/engine"
)

var (
	rulesFile string
	srcAddrs  []string
	dstAddrs  []string
	srcPorts  []string
	dstPorts  []string
	protocols []string
	trace     bool
	maxTerms  int
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aclcheck",
		Short: "Check and generate access-list terms offline",
		Long: `aclcheck evaluates a requested traffic flow against a rule-set file
(JSON term list) and reports whether the flow is permitted, denied or
indeterminate. The gen subcommand emits the minimal terms the file is
missing to authorize the flow.`,
	}

	rootCmd.PersistentFlags().StringVarP(&rulesFile, "rules", "r", "", "Rule-set JSON file (required)")
	rootCmd.PersistentFlags().StringSliceVar(&srcAddrs, "src", nil, "Source address value(s)")
	rootCmd.PersistentFlags().StringSliceVar(&dstAddrs, "dst", nil, "Destination address value(s)")
	rootCmd.PersistentFlags().StringSliceVarP(&srcPorts, "src-port", "p", nil, "Source port value(s)")
	rootCmd.PersistentFlags().StringSliceVarP(&dstPorts, "dst-port", "P", nil, "Destination port value(s)")
	rootCmd.PersistentFlags().StringSliceVar(&protocols, "protocol", nil, "Protocol value(s)")
	rootCmd.MarkPersistentFlagRequired("rules")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Decide whether the flow is already authorized",
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVarP(&trace, "trace", "t", false, "Print every hitting term, not just the decision")

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the terms missing for the flow",
		RunE:  runGen,
	}
	genCmd.Flags().IntVar(&maxTerms, "max-terms", engine.DefaultMaxTerms, "Cap on the flow expansion size")

	rootCmd.AddCommand(checkCmd, genCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadRules() (domain.RuleList, error) {
	data, err := os.ReadFile(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("reading rule-set file: %w", err)
	}
	var list domain.RuleList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing rule-set file: %w", err)
	}
	return list, nil
}

func buildFlow() domain.FlowRequest {
	flow := domain.FlowRequest{}
	add := func(f domain.Field, values []string) {
		if len(values) > 0 {
			flow[f] = values
		}
	}
	add(domain.FieldSourceAddress, srcAddrs)
	add(domain.FieldDestinationAddress, dstAddrs)
	add(domain.FieldSourcePort, srcPorts)
	add(domain.FieldDestinationPort, dstPorts)
	add(domain.FieldProtocol, protocols)
	return flow
}

func runCheck(cmd *cobra.Command, args []string) error {
	list, err := loadRules()
	if err != nil {
		return err
	}
	flow := buildFlow()
	if len(flow) == 0 {
		return fmt.Errorf("no flow given: set at least one of --src, --dst, --src-port, --dst-port, --protocol")
	}

	if !trace {
		fmt.Println(engine.Evaluate(list, flow))
		return nil
	}

	decision, entries := engine.EvaluateTrace(list, flow)
	for _, e := range entries {
		marker := " "
		if e.Decisive {
			marker = "*"
		}
		out, err := json.Marshal(e.Term)
		if err != nil {
			return err
		}
		fmt.Printf("%s term %d (%s): %s\n", marker, e.Index, e.Action, out)
	}
	fmt.Println(decision)
	return nil
}

func runGen(cmd *cobra.Command, args []string) error {
	list, err := loadRules()
	if err != nil {
		return err
	}
	flow := buildFlow()

	synth := &engine.Synthesizer{MaxTerms: maxTerms}
	terms, err := synth.Synthesize(list, flow)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(terms, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
