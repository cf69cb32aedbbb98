/*
Package domain defines the core data model shared across the Weft engine:
the generated UI document (Spec), its nodes, structural patches, action
bindings, validation issues, and lifecycle events.

All types here are plain data. Behavior lives in the packages that operate
on them (patch, validate, expr, action, ingest).
*/
package domain
