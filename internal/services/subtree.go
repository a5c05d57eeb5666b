package services

import (
	"context"
	"fmt"

	"github.com/ahmetk3436/netwatch/internal/models"
)

// SubtreeNode is a descendant and its distance below the subtree root.
type SubtreeNode struct {
	Group models.WatchGroup
	Level int
}

// ChildrenFunc loads the direct children of a group.
type ChildrenFunc func(ctx context.Context, parentID uint) ([]models.WatchGroup, error)

// Subtree returns every descendant of rootID in breadth-first order. It uses
// an explicit queue, visits each group once and costs one children lookup
// per visited group.
func Subtree(ctx context.Context, rootID uint, children ChildrenFunc) ([]SubtreeNode, error) {
	type item struct {
		id    uint
		level int
	}

	var out []SubtreeNode
	visited := map[uint]bool{rootID: true}
	queue := []item{{id: rootID}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		kids, err := children(ctx, cur.id)
		if err != nil {
			return nil, fmt.Errorf("load children of group %d: %w", cur.id, err)
		}
		for _, k := range kids {
			if visited[k.ID] {
				return nil, fmt.Errorf("group %d reached twice below group %d: parent links form a cycle", k.ID, rootID)
			}
			visited[k.ID] = true
			out = append(out, SubtreeNode{Group: k, Level: cur.level + 1})
			queue = append(queue, item{id: k.ID, level: cur.level + 1})
		}
	}
	return out, nil
}

// CascadeDepths assigns each descendant rootDepth plus its level, which
// shifts every node of a consistent subtree by the same delta as the root.
func CascadeDepths(rootDepth int, nodes []SubtreeNode) map[uint]int {
	depths := make(map[uint]int, len(nodes))
	for _, n := range nodes {
		depths[n.Group.ID] = rootDepth + n.Level
	}
	return depths
}
