// Package persona holds the recipe registry: the static rule tables that
// define how each persona (investment lens) scores a candidate.
//
// Recipes are immutable after the registry is built. Lookups hand out deep
// copies, so no caller can mutate a recipe another caller observes. Mutable,
// learned per-persona state lives in package memory, keyed by the same ID.
//
// The registry is assembled once at startup from the built-in table and an
// optional TOML recipe pack:
//
//	reg, err := persona.NewRegistryWithPack("/etc/dealscout/recipes.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := reg.Get("early")
//	if errors.Is(err, persona.ErrUnknownPersona) {
//	    // handle explicitly
//	}
package persona
