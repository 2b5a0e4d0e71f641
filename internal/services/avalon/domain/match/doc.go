// Package match implements the Avalon game state machine.
//
// A State is the single source of truth for one match. It moves through
// team_proposal, team_vote and mission each round, optionally through
// assassination_pending, and ends in game_over. Every action validates its
// input completely before touching the state, so a rejected action is a
// no-op: callers inform the actor and ask again.
//
// A State is owned by one driver and is not safe for concurrent use.
// Independent matches need independent States.
//
// Accepted actions append public events to the match log. Role briefings and
// individual mission cards are recorded as private events addressed to the
// player they concern.
package match
