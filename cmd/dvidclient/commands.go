package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/janelia-flyem/libdvid-go/client"
	"github.com/janelia-flyem/libdvid-go/dvid"
)

// command holds the connection settings merged from the config file and flags.
type command struct {
	config  *client.Config
	conn    *client.Connection
	volOpts []client.VolumeOption
}

func newCommand() (*command, error) {
	config := new(client.Config)
	if *configFile != "" {
		var err error
		if config, err = client.LoadConfig(*configFile); err != nil {
			return nil, err
		}
		config.Logging.SetLogger()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			config.Server.Address = *serverAddr
		case "uuid":
			config.Server.UUID = *uuidStr
		case "token":
			config.Server.Token = *token
		case "compression":
			config.Transfer.Compression = *compression
		case "throttle":
			config.Transfer.Throttle = *throttle
		}
	})
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Server.Address == "" {
		return nil, fmt.Errorf("DVID server must be given with --server or in the config file")
	}
	conn, err := client.NewConnection(config.Server.Address, config.Options()...)
	if err != nil {
		return nil, err
	}
	return &command{
		config:  config,
		conn:    conn,
		volOpts: config.VolumeOptions(),
	}, nil
}

func (c *command) node() (*client.NodeService, error) {
	if c.config.Server.UUID == "" {
		return nil, fmt.Errorf("this command requires a node UUID via --uuid or the config file")
	}
	return client.NewNodeService(c.conn, c.config.Server.UUID)
}

func expectArgs(args []string, min, max int) error {
	if len(args)-1 < min || len(args)-1 > max {
		return fmt.Errorf("command %q given %d arguments, see --help", args[0], len(args)-1)
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (c *command) run(ctx context.Context, args []string) error {
	server := client.NewServerService(c.conn)
	switch args[0] {
	case "ping":
		if err := expectArgs(args, 1, 1); err != nil {
			return err
		}
		return c.ping(ctx, server, args[1])

	case "info":
		info, err := server.ServerInfo(ctx)
		if err != nil {
			return err
		}
		return printJSON(info)

	case "newrepo":
		if err := expectArgs(args, 1, 2); err != nil {
			return err
		}
		var description string
		if len(args) > 2 {
			description = args[2]
		}
		uuid, err := server.CreateNewRepo(ctx, args[1], description)
		if err != nil {
			return err
		}
		fmt.Println(uuid)
		return nil
	}

	node, err := c.node()
	if err != nil {
		return err
	}
	switch args[0] {
	case "repoinfo":
		info, err := node.RepoInfo(ctx)
		if err != nil {
			return err
		}
		return printJSON(info)

	case "typeinfo":
		if err := expectArgs(args, 1, 1); err != nil {
			return err
		}
		info, err := node.TypeInfo(ctx, dvid.InstanceName(args[1]))
		if err != nil {
			return err
		}
		return printJSON(info)

	case "create":
		if err := expectArgs(args, 2, 2); err != nil {
			return err
		}
		return c.create(ctx, node, args[1], dvid.InstanceName(args[2]))

	case "put":
		if err := expectArgs(args, 2, 3); err != nil {
			return err
		}
		var value []byte
		if len(args) == 4 {
			value, err = os.ReadFile(args[3])
		} else {
			value, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		return node.Put(ctx, dvid.InstanceName(args[1]), args[2], value)

	case "get":
		if err := expectArgs(args, 2, 2); err != nil {
			return err
		}
		value, err := node.Get(ctx, dvid.InstanceName(args[1]), args[2])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(value)
		return err

	case "keys":
		if err := expectArgs(args, 1, 1); err != nil {
			return err
		}
		keys, err := node.Keys(ctx, dvid.InstanceName(args[1]))
		if err != nil {
			return err
		}
		return printJSON(keys)

	case "keyrange":
		if err := expectArgs(args, 3, 3); err != nil {
			return err
		}
		keys, err := node.KeyRange(ctx, dvid.InstanceName(args[1]), args[2], args[3])
		if err != nil {
			return err
		}
		return printJSON(keys)

	case "delete":
		if err := expectArgs(args, 2, 2); err != nil {
			return err
		}
		return node.Delete(ctx, dvid.InstanceName(args[1]), args[2])

	case "getgray", "putgray":
		if err := expectArgs(args, 4, 4); err != nil {
			return err
		}
		offset, err := dvid.StringToPoint3d(args[2], "_")
		if err != nil {
			return err
		}
		size, err := dvid.StringToPoint3d(args[3], "_")
		if err != nil {
			return err
		}
		if args[0] == "getgray" {
			return c.getGray(ctx, node, dvid.InstanceName(args[1]), offset, size, args[4])
		}
		return c.putGray(ctx, node, dvid.InstanceName(args[1]), offset, size, args[4])

	default:
		return fmt.Errorf("unknown command %q, see --help", args[0])
	}
}

// ping periodically requests server info as a heartbeat until an error or interrupt.
func (c *command) ping(ctx context.Context, server *client.ServerService, secs string) error {
	pause, err := strconv.Atoi(secs)
	if err != nil || pause < 1 {
		return fmt.Errorf("error parsing pause time %q: must be positive seconds", secs)
	}
	ticker := time.NewTicker(time.Duration(pause) * time.Second)
	defer ticker.Stop()
	for {
		start := time.Now()
		version, err := server.Version(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: error pinging %s: %w", start.Format(time.RFC3339), c.conn.Address(), err)
		}
		fmt.Printf("%s: DVID %s at %s responded in %s\n", start.Format(time.RFC3339), version, c.conn.Address(), time.Since(start))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (c *command) create(ctx context.Context, node *client.NodeService, typename string, name dvid.InstanceName) error {
	var created bool
	var err error
	switch typename {
	case "keyvalue":
		created, err = node.CreateKeyValue(ctx, name)
	case "grayscale8", client.Grayscale8Type:
		created, err = node.CreateGrayscale8(ctx, name)
	case client.LabelblkType:
		created, err = node.CreateLabelblk(ctx, name)
	default:
		return fmt.Errorf("unsupported type %q: use keyvalue, grayscale8, or labelblk", typename)
	}
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created %s instance %q\n", typename, name)
	} else {
		fmt.Printf("Instance %q already exists\n", name)
	}
	return nil
}

func (c *command) getGray(ctx context.Context, node *client.NodeService, name dvid.InstanceName, offset, size dvid.Point3d, filename string) error {
	vol, err := node.GetGray3D(ctx, name, offset, size, c.volOpts...)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, vol.Bytes(), 0644)
}

func (c *command) putGray(ctx context.Context, node *client.NodeService, name dvid.InstanceName, offset, size dvid.Point3d, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	vol, err := dvid.Array3DFromBytes[uint8](size, data)
	if err != nil {
		return fmt.Errorf("file %q doesn't hold %s voxels: %w", filename, size, err)
	}
	var opts []client.VolumeOption
	if c.config.Transfer.Throttle {
		opts = append(opts, client.Throttle())
	}
	return node.PutGray3D(ctx, name, vol, offset, opts...)
}
