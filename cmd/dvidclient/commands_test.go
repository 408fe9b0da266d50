package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janelia-flyem/libdvid-go/client"
	"github.com/janelia-flyem/libdvid-go/dvidtest"
)

func TestPingStopsCleanlyOnInterrupt(t *testing.T) {
	srv, err := dvidtest.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	conn, err := client.NewConnection(srv.Address(), client.WithRetryPolicy(client.NoRetry))
	require.NoError(t, err)
	cmd := &command{config: new(client.Config), conn: conn}
	server := client.NewServerService(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, cmd.ping(ctx, server, "1"))

	require.Error(t, cmd.ping(context.Background(), server, "0"))
}

func TestPingFailsOnDeadServer(t *testing.T) {
	srv, err := dvidtest.NewServer()
	require.NoError(t, err)
	addr := srv.Address()
	require.NoError(t, srv.Close())

	conn, err := client.NewConnection(addr, client.WithRetryPolicy(client.NoRetry))
	require.NoError(t, err)
	cmd := &command{config: new(client.Config), conn: conn}
	require.Error(t, cmd.ping(context.Background(), client.NewServerService(conn), "1"))
}
