package client_test

import (
	"testing"
	"time"

	"github.com/plgd-dev/websub-hub/pkg/log"
	"github.com/plgd-dev/websub-hub/pkg/nats/client"
	natsTest "github.com/plgd-dev/websub-hub/test/nats"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	url := natsTest.StartServer(t)
	cfg := client.Config{URL: url}
	require.NoError(t, cfg.Validate())
	c, err := client.New(cfg, log.Get())
	require.NoError(t, err)
	defer c.Close()

	sub, err := c.GetConn().SubscribeSync("websub.test")
	require.NoError(t, err)
	err = c.GetConn().Publish("websub.test", []byte("hello"))
	require.NoError(t, err)
	msg, err := sub.NextMsg(time.Second * 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(msg.Data))
}

func TestConfigValidate(t *testing.T) {
	cfg := client.Config{}
	require.Error(t, cfg.Validate())
}
