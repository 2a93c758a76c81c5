// Package users handles subscriber accounts: registration onto the free
// trial, preference updates, and the HMAC account tokens that authorize
// the self-service endpoints.
package users
