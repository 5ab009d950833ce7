// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package sandbox

// pythonShim is executed by `python3 -c` for every Python exec_code call.
// It rebuilds the restricted builtin/import namespace described in spec
// §4.9 and prints exactly one JSON line describing the outcome.
const pythonShim = `
import builtins
import json
import os
import sys

ALLOWED_MODULES = {"re", "json", "datetime", "math"}
BLOCKED_BUILTINS = {
    "open", "eval", "exec", "compile", "input", "__import__",
    "globals", "locals", "vars", "breakpoint", "help", "exit", "quit",
}

_real_import = builtins.__import__


def _restricted_import(name, *args, **kwargs):
    top = name.split(".")[0]
    if top not in ALLOWED_MODULES:
        raise ImportError(
            "Module '%s' is not allowed; allowed: %s" % (top, ", ".join(sorted(ALLOWED_MODULES)))
        )
    return _real_import(name, *args, **kwargs)


def _emit(ok, value="", error=""):
    print(json.dumps({"ok": ok, "value": value, "error": error}))


def main():
    guest_file = os.environ["FOS_GUEST_FILE"]
    func_name = os.environ.get("FOS_GUEST_FUNC", "")
    args = json.loads(os.environ.get("FOS_GUEST_ARGS", "[]"))
    context = json.loads(os.environ.get("FOS_GUEST_CONTEXT", "{}"))

    safe_builtins = {
        name: getattr(builtins, name)
        for name in dir(builtins)
        if name not in BLOCKED_BUILTINS
    }
    safe_builtins["__import__"] = _restricted_import

    sandbox_globals = {"__builtins__": safe_builtins}
    for mod in ALLOWED_MODULES:
        sandbox_globals[mod] = _real_import(mod)

    variables = dict(context.get("variables") or {})

    def get_variable(name):
        return variables.get(name, "")

    def set_variable(name, value):
        variables[name] = value

    class _Logger(object):
        def _write(self, level, msg):
            sys.stderr.write("[%s] %s\n" % (level, msg))

        def info(self, msg):
            self._write("info", msg)

        def warn(self, msg):
            self._write("warn", msg)

        def error(self, msg):
            self._write("error", msg)

    sandbox_globals["context"] = {
        "last_output": context.get("last_output", ""),
        "device": context.get("device", ""),
        "devices": context.get("devices") or [],
        "variables": variables,
        "config": context.get("config") or {},
        "workspace": context.get("workspace", ""),
        "get_variable": get_variable,
        "set_variable": set_variable,
        "logger": _Logger(),
    }

    try:
        with open(guest_file) as fh:
            source = fh.read()
        exec(compile(source, guest_file, "exec"), sandbox_globals)

        if func_name:
            func = sandbox_globals.get(func_name)
            if func is None:
                _emit(False, error="function '%s' not defined in guest file" % func_name)
                return
            result = func(*args)
            _emit(True, value="" if result is None else str(result))
            return

        result = sandbox_globals.get("__result__")
        _emit(True, value="" if result is None else str(result))
    except Exception as exc:  # noqa: BLE001 - guest errors must not crash the shim
        _emit(False, error=str(exc))


if __name__ == "__main__":
    main()
`
