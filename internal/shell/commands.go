package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phorp/calcrib/internal/procedure"
	"github.com/phorp/calcrib/internal/sensor"
)

// commands builds a fresh command tree. Trees are not reused between lines
// so flag state never leaks from one command to the next.
func (sh *Shell) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "crib",
		Short:         "Calibration toolcrib",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		sh.newCmd(),
		sh.listCmd(),
		sh.selectCmd(),
		sh.nextCmd(),
		sh.prevCmd(),
		sh.delCmd(),
		sh.nameCmd(),
		sh.locationCmd(),
		sh.addressCmd(),
		sh.showCmd(),
		sh.dumpCmd(),
		sh.calCmd(),
		sh.measCmd(),
		sh.qualityCmd(),
		sh.procCmd(),
		sh.saveCmd(),
		sh.loadCmd(),
		sh.viewCmd(),
		sh.archivesCmd(),
		sh.exitCmd(),
	)
	return root
}

func (sh *Shell) typeNames() string {
	types := sh.crib.Procedures.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, " ")
}

func (sh *Shell) newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <id> [type]",
		Short: "Create a sensor; the type is asked for when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var typ string
			if len(args) == 2 {
				typ = args[1]
			} else {
				answer, err := sh.ask(fmt.Sprintf(" enter sensor type [%s]: ", sh.typeNames()))
				if err != nil {
					return err
				}
				typ = answer
			}
			if typ == "" {
				return fmt.Errorf("missing sensor type, known types are %s", sh.typeNames())
			}

			s, err := sh.crib.NewSensor(sensor.Type(typ), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(sh.out, " created %s sensor %s\n", s.Type, s.ID)
			s.Show(sh.out)
			return nil
		},
	}
}

func (sh *Shell) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sensors with address and calibration due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sh.crib.Sensors.Len() == 0 {
				fmt.Fprintln(sh.out, ` no sensors in list. "new" to add a sensor.`)
				return nil
			}
			today := sh.crib.Today()
			for i, s := range sh.crib.Sensors.All() {
				caret := " "
				if i == sh.crib.Sensors.SelectedIndex() {
					caret = "*"
				}
				fmt.Fprintf(sh.out, " %s %s %s %s %s\n", caret,
					sh.colors.status(s.ID, s.IsCalibrated(today)), s.Type, s.Address, s.Calibration.DueString())
			}
			return nil
		},
	}
}

func (sh *Shell) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Select a sensor by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sh.crib.Sensors.Select(args[0])
		},
	}
}

func (sh *Shell) nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Select the next sensor in the list",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sh.crib.Sensors.Next()
		},
	}
}

func (sh *Shell) prevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Select the previous sensor in the list",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sh.crib.Sensors.Prev()
		},
	}
}

func (sh *Shell) delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del [id]",
		Short: "Delete the selected sensor, or the one named, after confirmation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *sensor.Sensor
			var err error
			if len(args) == 1 {
				s, err = sh.crib.Sensors.Get(args[0])
			} else {
				s, err = sh.crib.Selected()
			}
			if err != nil {
				return err
			}

			answer, err := sh.ask(fmt.Sprintf(" delete sensor %s (y/n)? ", s.ID))
			if err != nil {
				return err
			}
			if answer != "y" {
				fmt.Fprintln(sh.out, " delete cancelled.")
				return nil
			}
			if err := sh.crib.DeleteSensor(s.ID); err != nil {
				return err
			}
			fmt.Fprintln(sh.out, " sensor deleted.")
			return nil
		},
	}
}

// textCmd edits a free text field of the selected sensor. Without
// arguments the current value is printed.
func (sh *Shell) textCmd(use, short string, field func(s *sensor.Sensor) *string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprintf(sh.out, " %s\n", *field(s))
				return nil
			}
			*field(s) = strings.Join(args, " ")
			return nil
		},
	}
}

func (sh *Shell) nameCmd() *cobra.Command {
	return sh.textCmd("name [text]", "Show or set the sensor name",
		func(s *sensor.Sensor) *string { return &s.Name })
}

func (sh *Shell) locationCmd() *cobra.Command {
	return sh.textCmd("location [text]", "Show or set the sensor location",
		func(s *sensor.Sensor) *string { return &s.Location })
}

func (sh *Shell) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address [addr]",
		Short: "Show or set the deployed pHorp address, board a-h and channel 1-4 as in b3",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprintf(sh.out, " %s\n", s.Address)
				return nil
			}
			return s.SetAddress(args[0])
		},
	}
}

func (sh *Shell) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			s.Show(sh.out)
			return nil
		},
	}
}

func (sh *Shell) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Show setpoint statistics and the calibration of the selected sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			s.Dump(sh.out)
			return nil
		},
	}
}

func (sh *Shell) calCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cal",
		Short: "Calibrate the selected sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			proc, err := sh.crib.ProcedureFor(s)
			if err != nil {
				return err
			}
			ok, err := proc.Run(cmd.Context(), s)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(sh.out, " %s\n", sh.colors.green("calibration complete"))
			} else {
				fmt.Fprintf(sh.out, " %s\n", sh.colors.red("calibration unchanged"))
			}
			return nil
		},
	}
}

func (sh *Shell) measCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "meas [raw]",
		Short:              "Read the selected sensor, or evaluate a raw value in mV",
		Args:               cobra.MaximumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			units := s.Calibration.ScaledUnits

			if len(args) == 1 {
				raw, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("%q is not a number", args[0])
				}
				fmt.Fprintf(sh.out, " %g mV: %.4f %s\n", raw, s.Evaluate(raw), units)
				return nil
			}

			if err := s.Update(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(sh.out, " %.3f %s: %.4f %s\n", s.RawValue(), s.RawUnits(), s.ScaledValue(), units)
			return nil
		},
	}
}

func (sh *Shell) qualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality",
		Short: "Report on the calibration quality of the selected sensor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sh.crib.Selected()
			if err != nil {
				return err
			}
			proc, err := sh.crib.ProcedureFor(s)
			if err != nil {
				return err
			}
			return proc.Quality(sh.out, s)
		},
	}
}

func (sh *Shell) procCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proc [type [setting value]]",
		Short: "List procedures, show one, or edit one of its settings",
		Long: `proc               lists the procedure types
proc <type>        shows the defaults and the editable settings
proc <type> <setting> <value>
                   changes a default; new sensors of that type get it`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintf(sh.out, " procedures: %s\n", sh.typeNames())
				return nil
			}
			proc, err := sh.crib.Procedures.Get(sensor.Type(args[0]))
			if err != nil {
				return err
			}

			switch len(args) {
			case 1:
				proc.Show(sh.out)
				sh.showEditKeys(proc)
				return nil
			case 2:
				return fmt.Errorf("missing value for %s", args[1])
			}
			if err := proc.Edit(args[1], strings.Join(args[2:], " ")); err != nil {
				return err
			}
			proc.Show(sh.out)
			return nil
		},
	}
}

func (sh *Shell) showEditKeys(proc procedure.Procedure) {
	fmt.Fprintln(sh.out, " Settings")
	for _, k := range proc.EditKeys() {
		fmt.Fprintf(sh.out, "  %s\n", k.Help)
	}
}

func (sh *Shell) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Save procedures and sensors, to the current document when no name is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sh.crib.Save(firstArg(args))
			if err != nil {
				return err
			}
			fmt.Fprintf(sh.out, " calibration data saved to %s\n", path)
			return nil
		},
	}
}

func (sh *Shell) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [name]",
		Short: "Replace procedures and sensors with a saved document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sh.crib.Load(firstArg(args))
			if err != nil {
				return err
			}
			fmt.Fprintf(sh.out, " loaded %d sensors from %s, saved %s\n",
				sh.crib.Sensors.Len(), path, sh.crib.SavedAt())
			return nil
		},
	}
}

func (sh *Shell) viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the document as it would be saved",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			sh.out.Write(sh.crib.View())
		},
	}
}

func (sh *Shell) archivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archives [n]",
		Short: "List snapshots of the current document, or print snapshot n",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := sh.crib.Archives()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if len(paths) == 0 {
					fmt.Fprintln(sh.out, " no archives.")
				}
				for i, p := range paths {
					fmt.Fprintf(sh.out, " %d %s\n", i+1, p)
				}
				return nil
			}

			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 || n > len(paths) {
				return fmt.Errorf("archive number must be 1 to %d", len(paths))
			}
			text, err := sh.crib.ViewArchive(paths[n-1])
			if err != nil {
				return err
			}
			sh.out.Write(text)
			return nil
		},
	}
}

func (sh *Shell) exitCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "exit",
		Aliases: []string{"quit"},
		Short:   "Leave the shell",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(sh.out, " exiting")
			sh.done = true
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
