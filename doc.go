// Package genet implements a connection-oriented, reliable, ordered,
// multi-channel transport over unreliable UDP/IPv6 datagrams, aimed at
// real-time applications such as multiplayer games that need a mix of
// TCP-like reliable delivery, best-effort ordered streams and truly
// unordered datagrams multiplexed over one socket pair.
//
// A Host owns a bounded table of Peer connections and a single UDP
// socket. The application drives everything from one goroutine by
// calling Host.Service in a loop; Service never blocks longer than the
// timeout passed to it, and returns events (connect, disconnect,
// receive) as they become ready.
package genet
