package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
)

const scenarioTypeName = "scenario"

// LoadFile runs the Lua script at path and returns its scenario. The file
// name is used when the script leaves the name empty.
func LoadFile(path string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	sc, err := run(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sc.Name) == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// LoadString runs a Lua script held in memory.
func LoadString(source string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return run(state)
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerScenarioConstructor(state)
	return state
}

func run(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	sc, ok := ud.(*Scenario)
	if !ok || sc == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return sc, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "propose", Function: scenarioPropose},
	{Name: "vote", Function: scenarioVote},
	{Name: "vote_all", Function: scenarioVoteAll},
	{Name: "mission", Function: scenarioMission},
	{Name: "assassinate", Function: scenarioAssassinate},
	{Name: "discuss", Function: scenarioDiscuss},
	{Name: "say", Function: scenarioSay},
	{Name: "end_discussion", Function: scenarioEndDiscussion},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&Scenario{Name: name})
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

func scenarioPropose(state *lua.State) int {
	sc := checkScenario(state)
	leader := lua.CheckString(state, 2)
	lua.CheckType(state, 3, lua.TypeTable)
	return appendStep(state, sc, Step{Kind: KindPropose, Leader: leader, Team: stringList(state, 3)})
}

func scenarioVote(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	votes := make(map[player.ID]bool)
	forEachField(state, 2, func(key string) {
		if state.TypeOf(-1) != lua.TypeBoolean {
			lua.ArgumentError(state, 2, "vote for "+key+" must be a boolean")
		}
		votes[key] = state.ToBoolean(-1)
	})
	return appendStep(state, sc, Step{Kind: KindVote, Votes: votes})
}

func scenarioVoteAll(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeBoolean)
	return appendStep(state, sc, Step{Kind: KindVoteAll, Approve: state.ToBoolean(2)})
}

func scenarioMission(state *lua.State) int {
	sc := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	cards := make(map[player.ID]match.Card)
	forEachField(state, 2, func(key string) {
		value, _ := state.ToString(-1)
		card, ok := match.ParseCard(value)
		if !ok {
			lua.ArgumentError(state, 2, "card for "+key+" must be success or fail")
		}
		cards[key] = card
	})
	return appendStep(state, sc, Step{Kind: KindMission, Cards: cards})
}

func scenarioAssassinate(state *lua.State) int {
	sc := checkScenario(state)
	assassin := lua.CheckString(state, 2)
	target := lua.CheckString(state, 3)
	return appendStep(state, sc, Step{Kind: KindAssassinate, Assassin: assassin, Target: target})
}

func scenarioDiscuss(state *lua.State) int {
	sc := checkScenario(state)
	phase := lua.CheckString(state, 2)
	return appendStep(state, sc, Step{Kind: KindDiscuss, Phase: discussion.Phase(phase)})
}

func scenarioSay(state *lua.State) int {
	sc := checkScenario(state)
	speaker := lua.CheckString(state, 2)
	message := lua.CheckString(state, 3)
	return appendStep(state, sc, Step{Kind: KindSay, Speaker: speaker, Message: message})
}

func scenarioEndDiscussion(state *lua.State) int {
	sc := checkScenario(state)
	return appendStep(state, sc, Step{Kind: KindEndDiscussion})
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if sc, ok := ud.(*Scenario); ok && sc != nil {
		return sc
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

// appendStep records step and returns the scenario for chaining.
func appendStep(state *lua.State, sc *Scenario, step Step) int {
	sc.Steps = append(sc.Steps, step)
	state.PushValue(1)
	return 1
}

// stringList reads the array part of the table at index.
func stringList(state *lua.State, index int) []string {
	index = state.AbsIndex(index)
	var out []string
	for i := 1; ; i++ {
		state.RawGetInt(index, i)
		if state.IsNil(-1) {
			state.Pop(1)
			return out
		}
		value, ok := state.ToString(-1)
		state.Pop(1)
		if !ok {
			lua.ArgumentError(state, index, "expected a list of player ids")
		}
		out = append(out, value)
	}
}

// forEachField calls fn for every string-keyed entry of the table at index
// with the value on top of the stack.
func forEachField(state *lua.State, index int, fn func(key string)) {
	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			fn(key)
		}
		state.Pop(1)
	}
}
