/*
Package session manages the live wizard instances of a server.

A Manager owns one wizard.Controller per (session, flow) pair. Every call
for a pair runs under a per-pair lock, so the controller sees one request
at a time, which is the single event loop the engine assumes. With a
ports.DistributedLocker the same pair is also serialised across replicas.

Snapshots of a pair are stored under the namespace "<session>:<flow>", so
the step keys of a session read "<session>:<flow>-step-<n>".
*/
package session
