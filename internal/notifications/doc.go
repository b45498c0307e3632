// Package notifications fans a "summary ready" event out to session
// participants.
//
// Delivery is modelled as inserting one notification record per recipient;
// the push and email channels that consume those rows live elsewhere. A
// sentinel record type checked per recipient keeps anyone from being notified
// twice and lets a later dispatch reach recipients an earlier one missed.
// One-off trial sessions are never routed here.
package notifications
