// Package models defines the core domain models for the clinic billing backend.
//
// # Records
//
// A ServiceRecord is one billable service delivered to a patient by a
// practitioner at a site. It stays open (CompletedOn == nil) while the
// patient still owes part of its value, and is closed on the date the
// outstanding value reaches zero.
//
// # Settlements
//
// A SettlementReport (liquidación) is the payout computation for one
// practitioner over a date range. Reports are immutable once generated.
//
// # Money
//
// All amounts are decimal.Decimal in whole pesos. Nothing in this package
// performs arithmetic beyond trivial helpers; the rules live in the
// calculator package.
//
// # Design Principles
//
//  1. Identify relationships by ID or name strings, never by pointers
//  2. Keep payment-method behavior in PaymentKind capabilities, not string checks
//  3. Pass the caller's Session explicitly instead of reading ambient state
package models
