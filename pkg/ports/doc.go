/*
Package ports defines the interfaces between the Weft engine and its host:
the generation backend that produces edit streams, the snapshot store that
persists sessions, and the form-validation aggregator consulted by the
validateForm built-in.

The engine depends only on these interfaces; concrete implementations live
under pkg/adapters.
*/
package ports
