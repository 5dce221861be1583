package api

import (
	"fmt"

	"github.com/davidbalbert/miniospf/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client struct {
	*grpc.ClientConn
	*rpc.Client
}

// NewClient connects lazily: a daemon that isn't running shows up as an
// error on the first call.
func NewClient(socket string) (*Client, error) {
	target := fmt.Sprintf("unix:%s", socket)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	return &Client{
		ClientConn: conn,
		Client:     rpc.NewAPIClient(conn),
	}, nil
}
