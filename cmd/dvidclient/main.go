// Command-line interface to a remote DVID server through the client package.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/janelia-flyem/libdvid-go/dvid"
)

var (
	// Display usage if true.
	showHelp = flag.BoolP("help", "h", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.BoolP("verbose", "v", false, "")

	// TOML configuration file.  Flags override its settings.
	configFile = flag.StringP("config", "c", "", "")

	serverAddr  = flag.StringP("server", "s", "", "")
	uuidStr     = flag.StringP("uuid", "u", "", "")
	token       = flag.String("token", "", "")
	compression = flag.String("compression", "", "")
	throttle    = flag.Bool("throttle", false, "")
)

const helpMessage = `
dvidclient issues requests to a DVID server using its HTTP API.

Usage: dvidclient [options] <command>

	-s, --server      =string   DVID server address, e.g., "emdata.janelia.org:8000"
	-u, --uuid        =string   UUID (or unique prefix) of the version node
	-c, --config      =string   TOML configuration file
	    --token       =string   JWT sent as Authorization bearer token
	    --compression =string   Compression of volume GETs: "lz4" or "gzip"
	    --throttle    (flag)    Throttle volume requests on the server
	-v, --verbose     (flag)    Run in verbose mode.
	-h, --help        (flag)    Show help message

Commands:

	ping <seconds>                               Heartbeat the server until error
	info                                         Show server info
	newrepo <alias> <description>                Create a repo and print its root UUID
	repoinfo                                     Show info on the repo holding the node
	typeinfo <name>                              Show info on a data instance
	create <type> <name>                         Create "keyvalue", "grayscale8", or "labelblk" data
	put <name> <key> [file]                      Store file (or stdin) at key
	get <name> <key>                             Write value at key to stdout
	keys <name>                                  List keys
	keyrange <name> <begin key> <end key>        List keys in inclusive range
	delete <name> <key>                          Delete key
	getgray <name> <offset> <size> <file>        Write 8-bit voxels in ZYX order to file
	putgray <name> <offset> <size> <file>        Store 8-bit voxels in ZYX order from file

Offsets and sizes are given as "x_y_z", e.g., "0_0_100" and "512_512_64".
`

func main() {
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		dvid.SetLogMode(dvid.DebugMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, err := newCommand()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = cmd.run(ctx, flag.Args())
	dvid.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
