package client

import (
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/plgd-dev/websub-hub/pkg/log"
)

type Client struct {
	conn      *nats.Conn
	closeFunc fn.FuncList
}

func New(config Config, logger log.Logger) (*Client, error) {
	if config.UseTLS {
		tlsCfg, err := config.TLS.ToTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("cannot create tls config: %w", err)
		}
		config.Options = append(config.Options, nats.Secure(tlsCfg))
	}
	flusherTimeout := config.FlusherTimeout
	if flusherTimeout == 0 {
		flusherTimeout = time.Second * 30
	}
	config.Options = append(config.Options,
		nats.MaxReconnects(-1),
		nats.FlusherTimeout(flusherTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("nats connection lost: %w", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("nats connection restored to %v", c.ConnectedUrl())
		}),
	)
	conn, err := nats.Connect(config.URL, config.Options...)
	if err != nil {
		return nil, fmt.Errorf("cannot create nats client connection: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) GetConn() *nats.Conn {
	return c.conn
}

func (c *Client) AddCloseFunc(f func()) {
	c.closeFunc.AddFunc(f)
}

func (c *Client) Close() {
	c.conn.Close()
	c.closeFunc.Execute()
}
