// Package clickhouse implements the event log store on ClickHouse, over the
// analytics.events and analytics.custom_events tables populated by the
// tracker.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pkg/errors"

	C "funnelytics/config"
)

// Client wraps the native protocol ClickHouse connection.
type Client struct {
	conn clickhouse.Conn
}

// NewClient opens and pings a ClickHouse connection from configuration.
func NewClient(conf *C.Configuration) (*Client, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", conf.ClickhouseHost, conf.ClickhousePort)},
		Auth: clickhouse.Auth{
			Database: conf.ClickhouseDatabase,
			Username: conf.ClickhouseUser,
			Password: conf.ClickhousePassword,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, errors.Wrap(err, "open clickhouse connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, "ping clickhouse")
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
