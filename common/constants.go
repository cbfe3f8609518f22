package common

const (
	ProfileFileName    = "fragsplit.toml"
	FragsplitVersion   = "0.3.0"
	InitialFragmentOut = "initial.js"
	DeferredJSDir      = "deferredjs"
	DeferredJSSuffix   = ".cache.js"
)

// Keys of the numeric placeholders embedded in the generated JavaScript.  They
// are patched with fragment numbers once the program has been split.
const (
	RunAsyncFragmentIndex = "RunAsyncFragmentIndex"
	RunAsyncFragmentCount = "RunAsyncFragmentCount"
)

// ClassLiteralHolderName is the name of the synthetic type whose static fields
// hold the class literals of every declared type.
const ClassLiteralHolderName = "ClassLiteralHolder"
