package sdk

import (
	"time"

	"github.com/google/uuid"
)

// Role is the backend role model for dashboard actors.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDirector  Role = "director"
	RoleCounselor Role = "counselor"
)

// Actor identifies the signed-in user for permission checks. The role
// signals the backend spreads across is_staff/is_superuser/role collapse
// into Elevated.
type Actor struct {
	ID        uuid.UUID
	Role      Role
	Staff     bool
	Superuser bool
}

// Elevated reports whether the actor may edit any record on any date.
func (a Actor) Elevated() bool {
	return a.Staff || a.Superuser || a.Role == RoleAdmin || a.Role == RoleDirector
}

// Record is the ownership/creation shape every editable record type reduces
// to. Bunk logs and reflection logs both satisfy it.
type Record struct {
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// PermissionEvaluator computes time- and role-dependent edit permissions.
// It is pure: no I/O, deterministic given its inputs. A false result means
// the caller renders read-only and never issues the mutating request; the
// backend still enforces the same rules independently.
type PermissionEvaluator struct {
	// Location is the calendar reckoning for day comparisons.
	// Nil means time.Local.
	Location *time.Location
}

// CanCreate reports whether actor may create a new record dated targetDate.
// Non-elevated actors cannot create records for future calendar days.
func (e PermissionEvaluator) CanCreate(actor Actor, targetDate, now time.Time) bool {
	if actor.Elevated() {
		return true
	}
	return !e.dayAfter(targetDate, now)
}

// CanEdit reports whether actor may edit record on targetDate. A nil record
// means a new record is being created and CanCreate rules apply. For an
// existing record the actor must own it and the edit must happen on the
// calendar day the record was created.
func (e PermissionEvaluator) CanEdit(actor Actor, record *Record, targetDate, now time.Time) bool {
	if record == nil {
		return e.CanCreate(actor, targetDate, now)
	}
	if actor.Elevated() {
		return true
	}
	if record.OwnerID != actor.ID {
		return false
	}
	return e.sameDay(record.CreatedAt, now)
}

func (e PermissionEvaluator) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

// Comparisons use calendar-date components only, never raw timestamps, so
// time-of-day and timezone offsets cannot shift the window.
func (e PermissionEvaluator) sameDay(a, b time.Time) bool {
	loc := e.location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func (e PermissionEvaluator) dayAfter(a, b time.Time) bool {
	loc := e.location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	aDay := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bDay := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return aDay.After(bDay)
}
