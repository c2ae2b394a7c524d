package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	"github.com/JonMunkholm/calctoken/internal/service"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// errInvalid signals that validation output was already printed.
var errInvalid = errors.New("token registration is invalid")

// registrationFlags binds the fields of a registration to flags.
type registrationFlags struct {
	id          string
	name        string
	provider    string
	calculation string
	description string
}

func (f *registrationFlags) bind(cmd *cobra.Command, withID bool) {
	cmd.Flags().StringVar(&f.name, "name", "", "token name")
	cmd.Flags().StringVar(&f.provider, "provider", "", "provider class name")
	cmd.Flags().StringVar(&f.calculation, "calculation", "", "calculation name")
	cmd.Flags().StringVar(&f.description, "description", "", "free-text description")
	if withID {
		cmd.Flags().StringVar(&f.id, "id", "", "ID of an existing registration being changed")
	}
}

func (f *registrationFlags) registration() (token.Registration, error) {
	reg := token.Registration{
		Name:              f.name,
		ProviderClassName: f.provider,
		CalculationName:   f.calculation,
		Description:       f.description,
	}
	if f.id != "" {
		id, err := uuid.Parse(f.id)
		if err != nil {
			return reg, fmt.Errorf("invalid --id: %w", err)
		}
		reg.ID = id
	}
	return reg, nil
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered calculation providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := calculation.NewResolver(nil).Providers(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tCALCULATION")
			for _, p := range infos {
				for _, c := range p.Calculations {
					fmt.Fprintf(w, "%s\t%s\n", p.Name, c)
				}
			}
			return w.Flush()
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	var f registrationFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a registration without storing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := f.registration()
			if err != nil {
				return err
			}

			svc, closeFn, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			errs := svc.Check(cmd.Context(), reg)
			if errs.HasErrors() {
				printErrors(cmd.OutOrStdout(), errs.All())
				return errInvalid
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	f.bind(cmd, true)
	return cmd
}

func newRegisterCmd(opts *options) *cobra.Command {
	var f registrationFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Validate and store a new registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := f.registration()
			if err != nil {
				return err
			}

			svc, closeFn, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			created, err := svc.Register(cmd.Context(), reg)
			if err != nil {
				return reportError(cmd.OutOrStdout(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
	f.bind(cmd, false)
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			regs, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tCALCULATION")
			for _, r := range regs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.ProviderClassName, r.CalculationName)
			}
			return w.Flush()
		},
	}
}

// reportError prints validation failures one per line; other errors are
// returned with their support code.
func reportError(w io.Writer, err error) error {
	var invalid *token.InvalidError
	if errors.As(err, &invalid) {
		printErrors(w, invalid.Errors)
		return errInvalid
	}
	return fmt.Errorf("%s: %w", service.FormatUserError(err), err)
}

func printErrors(w io.Writer, errs []token.ValidationError) {
	for _, ve := range errs {
		scope := ve.Field
		if scope == "" {
			scope = "-"
		}
		fmt.Fprintf(w, "error\t%s\t%s\t%s\n", scope, ve.Code, ve.Message)
	}
}
