package nwnpatch

import (
	"github.com/meigma/nwnpatch/patcher"
	"github.com/meigma/nwnpatch/resource"
)

// --- Re-exports from resource ---

// Repository is a uniform read/write facade over a resource store.
type Repository = resource.Repository

// ID identifies a resource by name and type.
type ID = resource.ID

// Info describes a stored resource.
type Info = resource.Info

// --- Re-exports from patcher ---

// OffsetMap maps lower-cased table names, and "tlk", to row offsets.
type OffsetMap = patcher.OffsetMap

// LedgerEntry records the row range one patched table occupies.
type LedgerEntry = patcher.LedgerEntry
