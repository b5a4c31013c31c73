// Package report builds the level digest and delivers it by email.
//
// A digest is composed from trend.Engine.SummaryForReport: one section per
// site, one line per point with level, fill percentage and the change over
// the report window. It is sent through the Brevo transactional email API
// as both plain text and HTML.
package report
