package payments

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// TxnIDGenerator issues transaction ids that are unique per payment attempt
// across instances, provided each instance has its own node id.
type TxnIDGenerator struct {
	node *snowflake.Node
}

func NewTxnIDGenerator(nodeID int64) (*TxnIDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &TxnIDGenerator{node: node}, nil
}

func (g *TxnIDGenerator) Next() string {
	return "TXN" + g.node.Generate().String()
}
