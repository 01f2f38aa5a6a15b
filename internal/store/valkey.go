package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/valkey-io/valkey-go"
)

// ValkeyKV stores items in Valkey (Redis-compatible). MSET and MGET are
// atomic on the server.
type ValkeyKV struct {
	client valkey.Client
}

// NewValkeyKV connects to a Valkey server.
func NewValkeyKV(addr string) (*ValkeyKV, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyKV{client: client}, nil
}

func (c *ValkeyKV) GetItems(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	msgs, err := c.client.Do(ctx, c.client.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, fmt.Errorf("valkey mget: %w", err)
	}
	for i, msg := range msgs {
		if i >= len(keys) {
			break
		}
		v, err := msg.ToString()
		if valkey.IsValkeyNil(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("valkey mget %s: %w", keys[i], err)
		}
		out[keys[i]] = v
	}
	return out, nil
}

func (c *ValkeyKV) SetItems(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	cmd := c.client.B().Mset().KeyValue()
	for _, k := range keys {
		cmd = cmd.KeyValue(k, items[k])
	}
	return c.client.Do(ctx, cmd.Build()).Error()
}

func (c *ValkeyKV) Close() error {
	c.client.Close()
	return nil
}
