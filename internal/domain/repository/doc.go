// Package repository defines the domain types and persistence contracts of
// the consent store. Implementations live under internal/store; services and
// the decision engine depend only on these interfaces.
package repository
