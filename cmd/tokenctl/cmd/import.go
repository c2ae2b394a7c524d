package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/calctoken/internal/token"
)

// seedFile is the YAML layout accepted by import:
//
//	tokens:
//	  - name: BMI
//	    provider: org.openmrs.calculation.ClinicalProvider
//	    calculation: Bmi
//	    description: Body mass index
type seedFile struct {
	Tokens []seedToken `yaml:"tokens"`
}

type seedToken struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"`
	Calculation string `yaml:"calculation"`
	Description string `yaml:"description"`
}

func (t seedToken) registration() token.Registration {
	return token.Registration{
		Name:              t.Name,
		ProviderClassName: t.Provider,
		CalculationName:   t.Calculation,
		Description:       t.Description,
	}
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &seed, nil
}

func newImportCmd(opts *options) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Register every token listed in a YAML file",
		Long: `Register every token listed in a YAML file.

Tokens are processed in file order and each one is validated on its own,
so earlier entries in the same file count toward name uniqueness. A failing
entry is reported and the rest continue. With --dry-run nothing is stored,
so duplicates within the file itself are not detected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}

			svc, closeFn, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			failed := 0
			for i, t := range seed.Tokens {
				if dryRun {
					errs := svc.Check(cmd.Context(), t.registration())
					if errs.HasErrors() {
						failed++
						fmt.Fprintf(out, "#%d %s: invalid\n", i+1, t.Name)
						printErrors(out, errs.All())
						continue
					}
					fmt.Fprintf(out, "#%d %s: valid\n", i+1, t.Name)
					continue
				}

				created, err := svc.Register(cmd.Context(), t.registration())
				if err != nil {
					failed++
					fmt.Fprintf(out, "#%d %s: rejected\n", i+1, t.Name)
					if rerr := reportError(out, err); !errors.Is(rerr, errInvalid) {
						fmt.Fprintf(out, "error\t-\t-\t%v\n", rerr)
					}
					continue
				}
				fmt.Fprintf(out, "#%d %s: registered %s\n", i+1, created.Name, created.ID)
			}

			fmt.Fprintf(out, "%d of %d tokens failed\n", failed, len(seed.Tokens))
			if failed > 0 {
				return fmt.Errorf("%d tokens failed to import", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only; store nothing")
	return cmd
}
