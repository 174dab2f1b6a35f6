package dataflow

import (
	"context"
	"errors"
)

var (
	ErrCycleDetected   = errors.New("dataflow: cycle detected, graph is not acyclic")
	ErrUnknownEndpoint = errors.New("dataflow: edge endpoint does not exist")
	ErrInvalidPosition = errors.New("dataflow: edge position out of range")
	ErrNodeNotFound    = errors.New("dataflow: node not found")
	ErrFlowNotFound    = errors.New("dataflow: flow not found")
	ErrDuplicateName   = errors.New("dataflow: duplicate node name")
	ErrEmptyName       = errors.New("dataflow: empty node name")
)

// Repository defines the contract for persisting and retrieving flows.
type Repository interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Flows
	CreateFlow(ctx context.Context, f *Flow) (*Flow, error)
	GetFlow(ctx context.Context, flowID string) (*Flow, error)
	UpdateFlow(ctx context.Context, f *Flow) error
	DeleteFlow(ctx context.Context, flowID string) error
	ListFlows(ctx context.Context) ([]Flow, error)
}
