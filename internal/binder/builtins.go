package binder

// builtinNames lists the identifiers pre-bound into every module's builtins
// scope. This is a practical subset of CPython's `builtins` module: enough
// that ordinary programs resolve names like `print`/`len`/`Exception`
// without a bundled typeshed stub; stub-backed resolution (spec.md §4.4)
// supplies the rest once the import resolver is wired to a typeshed root.
var builtinNames = []string{
	"abs", "aiter", "anext", "all", "any", "ascii", "bin", "bool", "breakpoint",
	"bytearray", "bytes", "callable", "chr", "classmethod", "compile", "complex",
	"delattr", "dict", "dir", "divmod", "enumerate", "eval", "exec", "filter",
	"float", "format", "frozenset", "getattr", "globals", "hasattr", "hash",
	"help", "hex", "id", "input", "int", "isinstance", "issubclass", "iter",
	"len", "list", "locals", "map", "max", "memoryview", "min", "next", "object",
	"oct", "open", "ord", "pow", "print", "property", "range", "repr", "reversed",
	"round", "set", "setattr", "slice", "sorted", "staticmethod", "str", "sum",
	"super", "tuple", "type", "vars", "zip", "__import__", "__name__", "__file__",
	"__doc__", "__package__", "__spec__", "__loader__", "__builtins__",
	"True", "False", "None", "NotImplemented", "Ellipsis", "__debug__",

	"BaseException", "Exception", "ArithmeticError", "AssertionError",
	"AttributeError", "BlockingIOError", "BrokenPipeError", "BufferError",
	"BytesWarning", "ChildProcessError", "ConnectionAbortedError",
	"ConnectionError", "ConnectionRefusedError", "ConnectionResetError",
	"DeprecationWarning", "EOFError", "FileExistsError",
	"FileNotFoundError", "FloatingPointError", "FutureWarning", "GeneratorExit",
	"ImportError", "ImportWarning", "IndentationError", "IndexError",
	"InterruptedError", "IsADirectoryError", "KeyError", "KeyboardInterrupt",
	"LookupError", "MemoryError", "ModuleNotFoundError", "NameError",
	"NotADirectoryError", "NotImplementedError", "OSError", "OverflowError",
	"PendingDeprecationWarning", "PermissionError", "ProcessLookupError",
	"RecursionError", "ReferenceError", "ResourceWarning", "RuntimeError",
	"RuntimeWarning", "StopAsyncIteration", "StopIteration", "SyntaxError",
	"SyntaxWarning", "SystemError", "SystemExit", "TabError", "TimeoutError",
	"TypeError", "UnboundLocalError", "UnicodeDecodeError", "UnicodeEncodeError",
	"UnicodeError", "UnicodeTranslateError", "UnicodeWarning", "UserWarning",
	"ValueError", "Warning", "ZeroDivisionError",
}

// NewBuiltinsScope constructs the root scope every module's scope is
// parented to (spec.md §4.3 bullet 1).
func NewBuiltinsScope() *Scope {
	s := newScope(ScopeBuiltins, nil, nil)
	for _, name := range builtinNames {
		s.Symbols[name] = &Symbol{Name: name, Kind: SymVariable, Scope: s}
	}
	return s
}
