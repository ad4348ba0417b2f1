// Package verify confirms that a component's live binary reports the version
// an upgrade or rollback was meant to leave it at.
package verify
