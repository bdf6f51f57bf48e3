package memory

import (
	"context"
	"fmt"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
)

// RouterArgs is the journaled argument of CreateRouter
type RouterArgs struct {
	Item  entities.Handle
	Label string
}

// CreateRouter inserts a new router for an item. Routers are never reused.
func (s *session) CreateRouter(_ context.Context, item entities.Handle, label string) (entities.Handle, error) {
	if err := s.fail(OpCreateRouter); err != nil {
		return entities.NoHandle, err
	}
	if _, ok := s.db.itemsByID[item]; !ok {
		return entities.NoHandle, fmt.Errorf("router item not found: %d", item)
	}
	h := s.db.nextHandle()
	s.db.routersByID[h] = len(s.db.routers)
	s.db.routers = append(s.db.routers, RouterRow{Handle: h, Item: item, Label: label})
	s.record(OpCreateRouter, RouterArgs{item, label}, h)
	return h, nil
}

// AttachRouterStep appends a step to a router
func (s *session) AttachRouterStep(_ context.Context, step entities.RouterStep) error {
	if err := s.fail(OpAttachRouterStep); err != nil {
		return err
	}
	i, ok := s.db.routersByID[step.Router]
	if !ok {
		return fmt.Errorf("router not found: %d", step.Router)
	}
	if _, ok := s.db.itemsByID[step.Item]; !ok {
		return fmt.Errorf("router step item not found: %d", step.Item)
	}
	s.db.routers[i].Steps = append(s.db.routers[i].Steps, step)
	s.record(OpAttachRouterStep, step, step.Router)
	return nil
}
