/*
Package graph synchronizes audio and video streams against a shared
virtual clock.

A Graph holds SourceStreams, which are fed by producers from any
goroutine, and ProcessedStreams, which compute their content from other
streams connected through InputPorts. One scheduling goroutine advances the
graph in iterations. Each iteration applies the control changes flushed
since the previous one, orders the streams by their dependencies, decides
which streams are blocked, lets processors produce their output, renders
audio and video, notifies listeners and finally publishes a snapshot of
every stream to the control side.

Control methods (creating streams, connecting ports, changing outputs) may
be called from any goroutine. They take effect once FlushPendingChanges
has handed them to the scheduler; all changes of one flush are applied in
the same iteration.

A stream is blocked while it has no data to play, while its explicit
blocker count is above zero, or when a port flag ties its blocking to a
blocked neighbor. The time of a blocked stream does not advance.
*/
package graph
