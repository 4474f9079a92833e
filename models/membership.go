package models

// MemberStatus is the transport-neutral result of a live membership lookup.
type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberLeft    MemberStatus = "left"
	MemberKicked  MemberStatus = "kicked"
	MemberUnknown MemberStatus = "unknown"
)
