package model

// Package model contains the domain types shared across layers.
// Pure data, no persistence tags or business logic.
