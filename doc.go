// Package main provides the entry point for the Okta client application.
// It runs a Fiber based web service that authenticates users through SAML
// single sign-on against an Okta IdP, mirrors directory profiles and group
// memberships into a local gorm backed database, and derives staff and
// superuser roles from group membership. A companion update-users command
// refreshes the local database from the directory in bulk.
package main
