package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlbkkk/cloudimpact/internal/orchestrator"
)

const unifiedDiff = `diff --git a/src/main/java/com/example/Greeter.java b/src/main/java/com/example/Greeter.java
index 1111111..2222222 100644
--- a/src/main/java/com/example/Greeter.java
+++ b/src/main/java/com/example/Greeter.java
@@ -2,5 +2,5 @@
 public class Greeter {
     public String greet() {
-        return "hi";
+        return "hello";
     }
 }
`

func TestParseHunkTargetRangesReadsGitDiffHeader(t *testing.T) {
	t.Parallel()

	ranges, err := orchestrator.ParseHunkTargetRanges(unifiedDiff)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, orchestrator.LineRange{Start: 2, End: 6}, ranges[0])
}

func TestParseHunkTargetRangesEmptyDiffYieldsNoRanges(t *testing.T) {
	t.Parallel()

	ranges, err := orchestrator.ParseHunkTargetRanges("")
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

const greeterSource = `package com.example;

public class Greeter {
    public String greet() {
        return "hello";
    }

    public String farewell() {
        return "bye";
    }
}
`

func TestChangedMethodsFindsOnlyOverlappingMethod(t *testing.T) {
	t.Parallel()

	changed, err := orchestrator.ChangedMethods("src/main/java/com/example/Greeter.java", greeterSource, unifiedDiff)
	require.NoError(t, err)
	assert.Contains(t, changed, "greet")
	assert.NotContains(t, changed, "farewell")
}
