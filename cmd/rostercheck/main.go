// Command rostercheck validates parent and staff roster files before upload.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jamesgurung/school-helpdesk/internal/roster"
)

func main() {
	root := &cobra.Command{
		Use:           "rostercheck",
		Short:         "Validate helpdesk roster files",
		Long:          "Checks parent and staff roster files (CSV or XLSX) for missing columns, blank rows, and duplicate addresses before they are uploaded to the helpdesk.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(parentsCmd(), staffCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parents <file>",
		Short: "Validate a parent roster file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			parents, err := roster.LoadParentsFile(args[0], f)
			if err != nil {
				return err
			}

			children := 0
			byEmail := map[string][]string{}
			for _, p := range parents {
				children += len(p.Children)
				byEmail[p.Email] = append(byEmail[p.Email], p.Name)
			}

			fmt.Printf("%d parents, %d children, %d distinct addresses\n",
				len(parents), children, len(byEmail))

			shared := sharedAddresses(byEmail)
			for _, addr := range shared {
				fmt.Printf("note: %s is shared by %d parents; replies from it will not be matched to a child automatically\n",
					addr, len(byEmail[addr]))
			}
			return nil
		},
	}
}

func staffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "staff <file>",
		Short: "Validate a staff roster file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			staff, err := roster.LoadStaffFile(args[0], f)
			if err != nil {
				return err
			}

			seen := map[string]int{}
			for _, member := range staff {
				seen[member.Email]++
			}
			for addr, n := range seen {
				if n > 1 {
					return fmt.Errorf("%s appears %d times", addr, n)
				}
			}

			fmt.Printf("%d staff members\n", len(staff))
			return nil
		},
	}
}

func sharedAddresses(byEmail map[string][]string) []string {
	var shared []string
	for addr, names := range byEmail {
		if len(names) > 1 {
			shared = append(shared, addr)
		}
	}
	sort.Strings(shared)
	return shared
}
