// Package ids generates externally visible order ids and coupon codes.
package ids

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

const (
	OrderPrefix  = "CPMWL"
	CouponPrefix = "CPN"
)

type Generator interface {
	OrderID() string
	CouponCode() string
}

// SnowflakeGenerator combines a time-ordered snowflake id with a random
// suffix. Ids are unique per node; the random part covers nodes sharing an id.
type SnowflakeGenerator struct {
	node *snowflake.Node
}

func NewSnowflakeGenerator(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	return &SnowflakeGenerator{node: node}, nil
}

func (g *SnowflakeGenerator) OrderID() string {
	return OrderPrefix + g.node.Generate().String() + randomSuffix(3)
}

func (g *SnowflakeGenerator) CouponCode() string {
	return CouponPrefix + strings.ToUpper(g.node.Generate().Base36()) + randomSuffix(4)
}

func randomSuffix(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s[:n]
}
