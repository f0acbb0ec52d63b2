package pennant_test

import (
	"context"
	"fmt"

	"github.com/OrlandoBitencourt/pennant"
	"github.com/OrlandoBitencourt/pennant/internal/logging"
)

func ExampleEngine_Explain() {
	engine, err := pennant.New(pennant.WithLogger(logging.Discard()))
	if err != nil {
		panic(err)
	}
	defer engine.Close(context.Background())

	if err := engine.Namespace("checkout"); err != nil {
		panic(err)
	}

	_, err = engine.LoadPayload(context.Background(), "checkout", []byte(`{
		"schemaVersion": 1,
		"namespace": "checkout",
		"flags": [{
			"key": "new-cart",
			"type": "boolean",
			"default": false,
			"rules": [{"value": true, "platforms": ["ios"], "note": "ios launch"}]
		}]
	}`))
	if err != nil {
		panic(err)
	}

	id := pennant.NewToggleID("checkout", "new-cart")
	ios := pennant.NewContext("user-42").WithPlatform("ios")

	d, _ := engine.Explain(context.Background(), id, ios)
	fmt.Println(d.Kind, d.Value, d.Rule.Note)

	fmt.Println(engine.Bool(context.Background(), id, ios.WithPlatform("web"), true))
	// Output:
	// rule true ios launch
	// false
}
