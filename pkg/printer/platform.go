package printer

// Platform describes the commands used to talk to the print system.
type Platform struct {
	Name string

	// StatusCommand lists installed printers, one per line.
	StatusCommand []string

	// Header is true when the first line of the status output is a column
	// header rather than a printer.
	Header bool

	// PrintCommand returns the command that submits file to printer.
	PrintCommand func(printer, file string) []string

	// Detached submits jobs without waiting for the command to exit.
	Detached bool
}

// CUPS returns the platform for systems with the CUPS client tools.
func CUPS() Platform {
	return Platform{
		Name:          "cups",
		StatusCommand: []string{"lpstat", "-e"},
		PrintCommand: func(printer, file string) []string {
			return []string{"lp", "-d", printer, file}
		},
		Detached: true,
	}
}

// Windows returns the platform for Windows. Jobs are sent through the
// Ghostscript binary gs using the mswinpr2 device.
func Windows(gs string) Platform {
	if gs == "" {
		gs = "gswin64c"
	}
	return Platform{
		Name:          "windows",
		StatusCommand: []string{"wmic", "printer", "get", "name"},
		Header:        true,
		PrintCommand: func(printer, file string) []string {
			return []string{gs, "-dBATCH", "-dNOPAUSE", "-dSAFER", "-dNoCancel",
				"-sDEVICE=mswinpr2", "-sOutputFile=%printer%" + printer, file}
		},
	}
}

// DefaultPlatform returns the platform for the operating system the binary
// was built for.
func DefaultPlatform() Platform { return defaultPlatform() }
